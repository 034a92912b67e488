package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/soamn/slicepdf/imaging"
	"github.com/soamn/slicepdf/tools"
)

func (a *app) rotateCmd() *cobra.Command {
	var output string
	var turns []string
	cmd := &cobra.Command{
		Use:   "rotate input.pdf --turn PAGE=DEGREES...",
		Short: "Rotate pages of a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instrs, err := parseTurns(turns)
			if err != nil {
				return err
			}
			started := time.Now()
			res, err := a.toolkit().Rotate(cmd.Context(), args[0], output, instrs)
			msg := "PDF pages rotated successfully"
			if err == nil && len(res.Skipped) > 0 {
				msg = fmt.Sprintf("%s (skipped pages %v)", msg, res.Skipped)
			}
			return a.finish(cmd.Context(), "rotate", output, res.Rotated, started, err, msg)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "rotated_document_by_slice_PDF.pdf", "Output file")
	cmd.Flags().StringSliceVarP(&turns, "turn", "t", nil, "PAGE=DEGREES, repeatable (e.g. 1=90,3=-90)")
	return cmd
}

func parseTurns(turns []string) ([]tools.RotateInstruction, error) {
	out := make([]tools.RotateInstruction, 0, len(turns))
	for _, t := range turns {
		p, d, ok := strings.Cut(t, "=")
		if !ok {
			return nil, fmt.Errorf("bad --turn %q, want PAGE=DEGREES", t)
		}
		page, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("bad page in --turn %q", t)
		}
		deg, err := strconv.Atoi(strings.TrimSpace(d))
		if err != nil {
			return nil, fmt.Errorf("bad degrees in --turn %q", t)
		}
		out = append(out, tools.RotateInstruction{Page: page, Degrees: deg})
	}
	return out, nil
}

func (a *app) compressCmd() *cobra.Command {
	var output, filter string
	var quality int
	var scale float64
	cmd := &cobra.Command{
		Use:   "compress input.pdf",
		Short: "Shrink the images inside a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("quality") {
				quality = a.cfg.Tools.JPEGQuality
			}
			if !cmd.Flags().Changed("scale") {
				scale = a.cfg.Tools.CompressScale
			}
			started := time.Now()
			res, err := a.toolkit().Compress(cmd.Context(), args[0], output, tools.CompressOptions{
				Quality: quality,
				Scale:   scale,
				Filter:  filter,
			})
			msg := fmt.Sprintf("PDF compressed successfully: %d of %d images recompressed, %d -> %d bytes",
				res.Recompressed, res.Images, res.BytesBefore, res.BytesAfter)
			return a.finish(cmd.Context(), "compress", output, 0, started, err, msg)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "compressed_by_slice_pdf.pdf", "Output file")
	cmd.Flags().IntVarP(&quality, "quality", "q", tools.DefaultCompressQuality, "JPEG quality (1-100)")
	cmd.Flags().Float64Var(&scale, "scale", tools.DefaultCompressScale, "Image scale factor in (0, 1]")
	cmd.Flags().StringVar(&filter, "filter", imaging.DefaultFilter, "Resampling filter")
	return cmd
}

func (a *app) protectCmd() *cobra.Command {
	var output, password string
	cmd := &cobra.Command{
		Use:   "protect input.pdf --password PASSWORD",
		Short: "Encrypt a PDF with a password (requires qpdf)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			started := time.Now()
			err := a.toolkit().Protect(cmd.Context(), args[0], output, password)
			return a.finish(cmd.Context(), "protect", output, 0, started, err, "PDF encrypted successfully")
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "protected.pdf", "Output file")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password for opening the file")
	cmd.MarkFlagRequired("password")
	return cmd
}

func (a *app) decryptCmd() *cobra.Command {
	var output, password string
	cmd := &cobra.Command{
		Use:   "decrypt input.pdf --password PASSWORD",
		Short: "Remove the password from a PDF (requires qpdf)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			started := time.Now()
			err := a.toolkit().Decrypt(cmd.Context(), args[0], output, password)
			return a.finish(cmd.Context(), "decrypt", output, 0, started, err, "PDF decrypted successfully")
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "slice_pdf_decrypted.pdf", "Output file")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Current password")
	return cmd
}

func (a *app) resizeCmd() *cobra.Command {
	var output, filter string
	var opts imaging.ResizeOptions
	cmd := &cobra.Command{
		Use:   "resize input-image -o output-image",
		Short: "Resize an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return fmt.Errorf("--output is required")
			}
			opts.Filter = filter
			started := time.Now()
			err := imaging.ResizeFile(args[0], output, opts)
			return a.finish(cmd.Context(), "resize", output, 0, started, err, "Image resized successfully")
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output image; its extension picks the format")
	cmd.Flags().IntVar(&opts.Width, "width", 0, "Target width in pixels")
	cmd.Flags().IntVar(&opts.Height, "height", 0, "Target height in pixels")
	cmd.Flags().Float64Var(&opts.Percent, "percent", 0, "Scale both sides by this percentage")
	cmd.Flags().IntVarP(&opts.Quality, "quality", "q", 0, "JPEG quality (1-100)")
	cmd.Flags().StringVar(&filter, "filter", imaging.DefaultFilter, "Resampling filter")
	return cmd
}
