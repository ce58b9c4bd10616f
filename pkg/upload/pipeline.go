package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/canaldelcongreso/portal/pkg/upload"

// Request is a single upload as received from the caller.
type Request struct {
	// Filename is the client-supplied filename. It is used for display,
	// for the extension fallback and for the ".mp3" audio routing rule,
	// never for the stored name.
	Filename string

	// Category is the raw "type" form value.
	Category string

	// Data is the full file content.
	Data []byte
}

// Artifact describes an accepted upload.
type Artifact struct {
	StoredName   string
	Subdir       string
	Size         int64
	OriginalName string
	Class        MediaClass
	ContentType  string
	Category     Category
	URL          string
}

// Result is the JSON response of a successful upload. Exactly one of
// ImageURL, AudioURL and DocumentURL is set, matching Type.
type Result struct {
	URL         string     `json:"url"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	AudioURL    string     `json:"audioUrl,omitempty"`
	DocumentURL string     `json:"documentUrl,omitempty"`
	FileURL     string     `json:"fileUrl"`
	FileName    string     `json:"fileName"`
	FileSize    int64      `json:"fileSize"`
	Type        MediaClass `json:"type"`

	Artifact Artifact `json:"-"`
}

// Observer is notified of every pipeline outcome.
type Observer interface {
	Stored(a Artifact)
	Rejected(err error)
}

// Pipeline validates and stores uploads. It holds no per-request state
// and is safe for concurrent use.
type Pipeline struct {
	store    Store
	observer Observer
	logger   *slog.Logger
	tracer   trace.Tracer
	newName  func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver sets the outcome observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		p.observer = o
	}
}

// WithLogger sets the logger used for unexpected failures.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithTracer overrides the tracer resolved from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = t
	}
}

// NewPipeline creates a pipeline writing to store.
func NewPipeline(store Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:   store,
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
		newName: uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Inspect runs the validation steps of the pipeline without writing
// anything: category normalization, detection, size and type policy,
// name generation and subdirectory selection.
func (p *Pipeline) Inspect(req Request) (Artifact, error) {
	category := NormalizeCategory(req.Category)

	mime, err := Detect(req.Data, req.Filename)
	if err != nil {
		return Artifact{}, rejectDefault(err)
	}

	class := ClassOf(mime)
	size := int64(len(req.Data))
	if err := CheckSize(class, size); err != nil {
		return Artifact{}, err
	}
	if err := CheckType(mime); err != nil {
		return Artifact{}, err
	}

	ext, ok := ExtensionFor(mime)
	if !ok {
		return Artifact{}, fmt.Errorf("no extension registered for %s", mime)
	}

	return Artifact{
		StoredName:   p.newName() + ext,
		Subdir:       Subdir(class, category, req.Filename),
		Size:         size,
		OriginalName: req.Filename,
		Class:        class,
		ContentType:  mime,
		Category:     category,
	}, nil
}

// Process validates req, stores it and returns the public URLs.
// Rejections are returned as *RejectError; any other error is internal.
func (p *Pipeline) Process(ctx context.Context, req Request) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "upload.process",
		trace.WithAttributes(
			attribute.String("upload.category", req.Category),
			attribute.Int("upload.size", len(req.Data)),
		),
	)
	defer span.End()

	a, err := p.Inspect(req)
	if err != nil {
		return nil, p.fail(span, err)
	}
	span.SetAttributes(
		attribute.String("upload.class", string(a.Class)),
		attribute.String("upload.content_type", a.ContentType),
		attribute.String("upload.subdir", a.Subdir),
	)

	err = p.store.Put(ctx, Object{
		Subdir:      a.Subdir,
		Name:        a.StoredName,
		ContentType: a.ContentType,
		Data:        req.Data,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidUploadType) {
			return nil, p.fail(span, rejectDefault(ErrInvalidUploadType))
		}
		return nil, p.fail(span, fmt.Errorf("store upload: %w", err))
	}

	a.URL = p.store.URL(a.Subdir, a.StoredName)
	if p.observer != nil {
		p.observer.Stored(a)
	}
	span.SetStatus(codes.Ok, "")

	return newResult(a), nil
}

func (p *Pipeline) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, Reason(err))
	return p.report(err)
}

// report logs unexpected failures and notifies the observer.
func (p *Pipeline) report(err error) error {
	if !IsRejection(err) {
		p.logger.Error("upload failed", "error", err)
	}
	if p.observer != nil {
		p.observer.Rejected(err)
	}
	return err
}

func newResult(a Artifact) *Result {
	r := &Result{
		URL:      a.URL,
		FileURL:  a.URL,
		FileName: a.OriginalName,
		FileSize: a.Size,
		Type:     a.Class,
		Artifact: a,
	}
	switch a.Class {
	case ClassAudio:
		r.AudioURL = a.URL
	case ClassDocument:
		r.DocumentURL = a.URL
	default:
		r.ImageURL = a.URL
	}
	return r
}
