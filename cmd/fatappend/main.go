// fatappend appends files to the root directory of an existing FAT12, FAT16
// or FAT32 volume image without mounting it.
//
// Example:
//
//	fatappend write --image sdcard.img --partition 1 boot.bin uImage
package main

import (
	"errors"

	"github.com/gokrazy/fatappend/imageflag"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var defaultLogFormatter = &log.TextFormatter{}

// infoFormatter overrides the default format for Info() log events to
// provide an easier to read output
type infoFormatter struct {
}

func (f *infoFormatter) Format(entry *log.Entry) ([]byte, error) {
	if entry.Level == log.InfoLevel {
		return append([]byte(entry.Message), '\n'), nil
	}
	return defaultLogFormatter.Format(entry)
}

func setupLogging(quiet, verbose bool) error {
	log.SetFormatter(new(infoFormatter))
	log.SetLevel(log.InfoLevel)
	if quiet && verbose {
		return errors.New("can't set quiet and verbose flag at the same time")
	}
	if quiet {
		log.SetLevel(log.ErrorLevel)
	}
	if verbose {
		// Switch back to the standard formatter
		log.SetFormatter(defaultLogFormatter)
		log.SetLevel(log.DebugLevel)
	}
	return nil
}

func newCmd() *cobra.Command {
	var (
		flagQuiet   bool
		flagVerbose bool
	)
	cmd := &cobra.Command{
		Use:           "fatappend",
		Short:         "Append files to FAT volume images",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(flagQuiet, flagVerbose)
		},
	}

	cmd.AddCommand(writeCmd())
	cmd.AddCommand(mkfsCmd())
	cmd.AddCommand(infoCmd())

	imageflag.RegisterPflags(cmd.PersistentFlags())
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Quiet execution")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose execution")

	return cmd
}

func main() {
	if err := newCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}
