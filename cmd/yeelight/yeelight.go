// Command yeelight allows performing basic operations on Yeelight devices
// over the LAN
package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/lanterndev/goyeelight/protocol"
)

var (
	flagTimeout  time.Duration
	flagDuration time.Duration
	flagEffect   string
	flagLogLevel string

	logger = logrus.New()
	app    = &cobra.Command{
		Use: `yeelight`,
		PersistentPreRun: func(c *cobra.Command, args []string) {
			setLogger()
		},
	}

	cmdGenerateBashComp = &cobra.Command{
		Use:   `bashcomp <filename>`,
		Short: "generate bash completion at <file>",
		Run:   generateBashComp,
	}

	cmdGenerateDocs = &cobra.Command{
		Use:   `docs <path>`,
		Short: "generate markdown documentation at <path>",
		Run:   generateDocs,
	}
)

func init() {
	app.PersistentFlags().DurationVarP(&flagTimeout, `timeout`, `t`, protocol.DefaultTimeout, `timeout for all operations`)
	app.PersistentFlags().DurationVarP(&flagDuration, `duration`, `d`, 300*time.Millisecond, `transition duration for effect-capable commands`)
	app.PersistentFlags().StringVarP(&flagEffect, `effect`, `e`, `smooth`, `transition effect, one of: [smooth,sudden]`)
	app.PersistentFlags().StringVarP(&flagLogLevel, `log-level`, `L`, `info`, `log level, one of: [debug,info,warn,error]`)

	app.AddCommand(cmdDiscover)
	app.AddCommand(cmdBulb)
	app.AddCommand(cmdGenerateBashComp)
	app.AddCommand(cmdGenerateDocs)
}

func main() {
	if err := app.Execute(); err != nil {
		os.Exit(1)
	}
}

func generateBashComp(c *cobra.Command, args []string) {
	if len(args) != 1 {
		_ = c.Usage()
		fmt.Println()
		logger.Fatalln(`Missing filename`)
	}

	buf := new(bytes.Buffer)
	f, err := os.Create(args[0])
	if err != nil {
		logger.WithFields(logrus.Fields{
			`filename`: args[0],
			`error`:    err,
		}).Fatalln(`Could not open file`)
	}
	_ = app.GenBashCompletion(buf)
	_, _ = buf.WriteTo(f)
}

func generateDocs(c *cobra.Command, args []string) {
	if len(args) != 1 {
		_ = c.Usage()
		fmt.Println()
		logger.Fatalln(`Missing output path`)
	}

	path := args[0]
	if path[len(path)-1] != os.PathSeparator {
		path += string(os.PathSeparator)
	}
	_ = doc.GenMarkdownTree(app, path)
}

func usage(c *cobra.Command, args []string) {
	_ = c.Usage()
}

func setLogger() {
	switch flagLogLevel {
	case `debug`:
		logger.Level = logrus.DebugLevel
	case `info`:
		logger.Level = logrus.InfoLevel
	case `warn`:
		logger.Level = logrus.WarnLevel
	case `error`:
		logger.Level = logrus.ErrorLevel
	default:
		logger.Level = logrus.InfoLevel
	}
}
