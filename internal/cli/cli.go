package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"xetra/internal/config"
	"xetra/internal/connector"
	"xetra/internal/state"
	"xetra/internal/tabular"
)

func Run(args []string) error {
	return run(args, os.Getenv)
}

func run(args []string, getenv func(string) string) error {
	fs := flag.NewFlagSet("xetra", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	configPath, err := state.ConfigPath()
	if err != nil {
		return err
	}
	fs.StringVar(&configPath, "config", configPath, "path to config file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return usageError()
	}

	cfg, err := loadConfig(configPath, getenv)
	if err != nil {
		return err
	}

	switch rest[0] {
	case "list":
		prefix, err := parseListArgs(rest[1:])
		if err != nil {
			return err
		}
		return listFiles(cfg, prefix)
	case "read":
		opts, key, err := parseReadArgs(rest[1:])
		if err != nil {
			return err
		}
		return readFile(cfg, key, opts)
	case "convert":
		opts, src, dst, err := parseConvertArgs(rest[1:], cfg.Output.Format)
		if err != nil {
			return err
		}
		return convertFile(cfg, src, dst, opts)
	default:
		return usageError()
	}
}

func usageError() error {
	return errors.New("usage: xetra [-config path] list [prefix] | read [-sep c] [-encoding name] <key> | convert [-format csv|parquet] <src> <dst>")
}

func listFiles(cfg *config.Config, prefix string) error {
	conn, err := connectorFromConfig(cfg)
	if err != nil {
		return err
	}
	keys, err := conn.ListFilesInPrefix(prefix)
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}
	for _, key := range keys {
		fmt.Println(key)
	}
	return nil
}

func readFile(cfg *config.Config, key string, opts readOptions) error {
	conn, err := connectorFromConfig(cfg)
	if err != nil {
		return err
	}
	ds, err := conn.ReadCSV(key, readOptionsFor(opts)...)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	out, err := tabular.EncodeCSV(ds)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func convertFile(cfg *config.Config, src, dst string, opts convertOptions) error {
	conn, err := connectorFromConfig(cfg)
	if err != nil {
		return err
	}
	ds, err := conn.ReadCSV(src, readOptionsFor(opts.readOptions)...)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	outcome, err := conn.WriteAs(ds, dst, opts.Format)
	if err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if outcome == connector.Skipped {
		fmt.Printf("convert skipped: %s has no rows\n", src)
		return nil
	}
	fmt.Printf("convert complete: %s -> %s format=%s rows=%d\n", src, dst, opts.Format, ds.NumRows())
	return nil
}
