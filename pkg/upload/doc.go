// Package upload implements the media upload pipeline of the portal.
//
// An upload is a single multipart POST carrying a "file" part and an
// optional "type" field naming the logical category (news, radio, ...).
// The pipeline never trusts the client: the media type is sniffed from
// the leading bytes of the file, and the stored name is generated.
//
// # Pipeline
//
//  1. Normalize the category (unknown values become "general")
//  2. Detect the media type from magic bytes, falling back to the
//     filename extension only when no signature matches
//  3. Enforce the size ceiling of the media class (image, audio, document)
//  4. Enforce the type allow-list
//  5. Generate a UUID filename with an extension chosen by type
//  6. Resolve the target directory and verify it stays inside the root
//  7. Write the file and return its public URLs
//
// Every rejection happens before the first byte is written.
//
// # Usage
//
// Mount the handler in your router:
//
//	store, _ := upload.NewDiskStore("public/uploads", "/uploads")
//	r.Post("/api/upload", upload.Handler(upload.NewPipeline(store)))
//
// The response for an image looks like:
//
//	{
//	  "url": "/uploads/news/5f0c...e1.png",
//	  "imageUrl": "/uploads/news/5f0c...e1.png",
//	  "fileUrl": "/uploads/news/5f0c...e1.png",
//	  "fileName": "portada.png",
//	  "fileSize": 48213,
//	  "type": "image"
//	}
//
// Audio responses carry "audioUrl" and documents carry "documentUrl"
// instead of "imageUrl".
//
// # Security
//
// The allow-list check after detection is independent of the detection
// table, and the directory containment check is independent of the
// category allow-list. Either layer alone keeps a bad upload off disk.
package upload
