// Command extract runs one extraction pipeline locally and prints the result as JSON.
//
//	extract --mode resume cv.pdf
//	extract --mode contract --title "Locação" contrato.docx
//	extract --mode profession "gosto de programar e de jogos"
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"docintel-go/internal/config"
	"docintel-go/internal/logger"
	"docintel-go/internal/nlp"
	"docintel-go/internal/processor"
	"docintel-go/internal/types"

	"github.com/spf13/pflag"
)

func main() {
	var (
		configPath string
		mode       string
		title      string
		verbose    bool
	)
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.StringVarP(&mode, "mode", "m", "resume", "Pipeline to run: resume, contract or profession")
	pflag.StringVarP(&title, "title", "t", "", "Contract title (contract mode)")
	pflag.BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: extract [flags] FILE|TEXT\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if pflag.NArg() == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	logCfg := logger.Config{Level: level, Format: "pretty"}
	l, _, _ := logger.New(logCfg, os.Stderr)
	logger.Logger = l

	out, err := run(context.Background(), configPath, mode, title, pflag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, "extract:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, "extract:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, mode, title string, args []string) (interface{}, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	model, err := nlp.NewModelFromConfig(cfg.NLP, nil)
	if err != nil {
		return nil, err
	}
	proc, err := processor.NewFromConfig(ctx, cfg, model, nil)
	if err != nil {
		return nil, err
	}

	switch mode {
	case "profession":
		return proc.SuggestProfessions(ctx, strings.Join(args, " "))
	case "resume", "contract":
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, err
		}
		doc := types.NewRawDocument(args[0], data)
		if mode == "resume" {
			return proc.ProcessResume(ctx, doc, nil)
		}
		return proc.ProcessContract(ctx, doc, title)
	}
	return nil, fmt.Errorf("unknown mode %q", mode)
}
