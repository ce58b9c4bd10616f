package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/canaldelcongreso/portal/internal/errors"
	"github.com/canaldelcongreso/portal/pkg/upload"
)

func detectCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "detect <file>...",
		Short: "Run upload checks on local files",
		Long: `Run the upload checks on local files without storing anything.

For each file this prints the detected type, media class, size and the
directory it would be stored in, or the reason it would be rejected.

Examples:
  portal detect boletin.pdf
  portal detect --type radio entrevista.mp3 portada.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd.OutOrStdout(), category, args)
		},
	}

	cmd.Flags().StringVarP(&category, "type", "t", "", "Upload category (default general)")

	return cmd
}

func runDetect(w io.Writer, category string, paths []string) error {
	p := upload.NewPipeline(nil)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tTYPE\tCLASS\tSIZE\tDIR\tRESULT")

	rejected := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			tw.Flush()
			return errors.New("P160").WithDetail(path).Wrap(err)
		}

		a, err := p.Inspect(upload.Request{
			Filename: filepath.Base(path),
			Category: category,
			Data:     data,
		})
		if err != nil {
			rejected++
			msg := err.Error()
			var re *upload.RejectError
			if stderrors.As(err, &re) {
				msg = re.Message
			}
			fmt.Fprintf(tw, "%s\t-\t-\t%d\t-\trejected: %s\n", path, len(data), msg)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\tok\n", path, a.ContentType, a.Class, a.Size, a.Subdir)
	}
	tw.Flush()

	if rejected > 0 {
		return errors.Newf(errors.CategoryCLI, "%d of %d files would be rejected", rejected, len(paths))
	}
	return nil
}
