package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dnobori/DN-SuperBook-PDF-Converter/internal/book"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input.pdf> [output.pdf]",
	Short: "Convert a scanned book PDF",
	Long: `Convert a scanned book PDF into a clean digital book.

The output path defaults to the input name with a "_converted" suffix.
The --advanced flag enables internal-resolution normalization, color
correction, offset alignment, and upscaling in one switch.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]
	if !strings.EqualFold(filepath.Ext(input), ".pdf") {
		cmd.SilenceUsage = true
		fmt.Fprintf(cmd.ErrOrStderr(), "input must be a PDF: %s\n", input)
		os.Exit(book.ExitBadArgs)
	}
	output := defaultOutputPath(input)
	if len(args) > 1 {
		output = args[1]
	}

	cfg := GetConfig()
	cfg.ApplyAdvanced()
	if err := cfg.Validate(); err != nil {
		cmd.SilenceUsage = true
		fmt.Fprintf(cmd.ErrOrStderr(), "invalid options: %v\n", err)
		os.Exit(book.ExitBadArgs)
	}

	if _, err := os.Stat(input); err != nil {
		cmd.SilenceUsage = true
		fmt.Fprintf(cmd.ErrOrStderr(), "cannot read input: %v\n", err)
		os.Exit(book.ExitInput)
	}

	runner, err := book.NewRunner(cfg, slog.Default())
	if err != nil {
		cmd.SilenceUsage = true
		fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
		os.Exit(book.ExitCode(err))
	}

	summary, err := runner.Run(cmd.Context(), input, output)
	if err != nil {
		cmd.SilenceUsage = true
		fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
		os.Exit(book.ExitCode(err))
	}

	fmt.Fprintln(cmd.OutOrStdout(), summary.String())
	return nil
}

// defaultOutputPath derives the output name from the input.
func defaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_converted" + ext
}

func init() {
	rootCmd.AddCommand(convertCmd)

	flags := convertCmd.Flags()
	flags.Int("dpi", 300, "output DPI")
	flags.Bool("ocr", false, "add a searchable text layer via external OCR")
	flags.Bool("upscale", true, "enable AI upscaling via external process")
	flags.Bool("deskew", true, "enable rotation correction")
	flags.Float64("margin-trim", 0.5, "percent-of-edge trim floor")
	flags.Bool("gpu", true, "allow GPU in external processes")
	flags.Int("threads", 0, "worker pool size (0 = hardware parallelism)")
	flags.Bool("internal-resolution", false, "normalize to the fixed internal canvas before analysis")
	flags.Bool("color-correction", false, "enable global color normalization")
	flags.Bool("offset-alignment", false, "align pages by printed page numbers")
	flags.Int("output-height", 3508, "finalize target height in pixels")
	flags.Bool("advanced", false, "enable internal-resolution, color-correction, offset-alignment, and upscale")

	_ = viper.BindPFlag("dpi", flags.Lookup("dpi"))
	_ = viper.BindPFlag("ocr", flags.Lookup("ocr"))
	_ = viper.BindPFlag("upscale", flags.Lookup("upscale"))
	_ = viper.BindPFlag("deskew", flags.Lookup("deskew"))
	_ = viper.BindPFlag("margin_trim", flags.Lookup("margin-trim"))
	_ = viper.BindPFlag("gpu", flags.Lookup("gpu"))
	_ = viper.BindPFlag("threads", flags.Lookup("threads"))
	_ = viper.BindPFlag("internal_resolution", flags.Lookup("internal-resolution"))
	_ = viper.BindPFlag("color_correction", flags.Lookup("color-correction"))
	_ = viper.BindPFlag("offset_alignment", flags.Lookup("offset-alignment"))
	_ = viper.BindPFlag("output_height", flags.Lookup("output-height"))
	_ = viper.BindPFlag("advanced", flags.Lookup("advanced"))
}
