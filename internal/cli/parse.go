package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"unicode/utf8"

	"xetra/internal/tabular"
)

func parseListArgs(args []string) (string, error) {
	listFS := flag.NewFlagSet("list", flag.ContinueOnError)
	listFS.SetOutput(os.Stderr)

	if err := listFS.Parse(args); err != nil {
		return "", err
	}
	rest := listFS.Args()
	switch len(rest) {
	case 0:
		return "", nil
	case 1:
		return rest[0], nil
	default:
		return "", errors.New("usage: xetra list [prefix]")
	}
}

func parseReadArgs(args []string) (readOptions, string, error) {
	readFS := flag.NewFlagSet("read", flag.ContinueOnError)
	readFS.SetOutput(os.Stderr)

	var opts readOptions
	bindReadFlags(readFS, &opts)

	if err := readFS.Parse(args); err != nil {
		return readOptions{}, "", err
	}
	rest := readFS.Args()
	if len(rest) != 1 {
		return readOptions{}, "", errors.New("usage: xetra read [-sep c] [-encoding name] <key>")
	}
	if _, err := parseSeparator(opts.Separator); err != nil {
		return readOptions{}, "", err
	}
	return opts, rest[0], nil
}

func parseConvertArgs(args []string, defaultFormat string) (convertOptions, string, string, error) {
	convertFS := flag.NewFlagSet("convert", flag.ContinueOnError)
	convertFS.SetOutput(os.Stderr)

	var opts convertOptions
	bindReadFlags(convertFS, &opts.readOptions)
	convertFS.StringVar(&opts.Format, "format", defaultFormat, "output format (csv or parquet)")

	if err := convertFS.Parse(args); err != nil {
		return convertOptions{}, "", "", err
	}
	rest := convertFS.Args()
	if len(rest) != 2 {
		return convertOptions{}, "", "", errors.New("usage: xetra convert [-format csv|parquet] [-sep c] [-encoding name] <src> <dst>")
	}
	if _, err := parseSeparator(opts.Separator); err != nil {
		return convertOptions{}, "", "", err
	}
	return opts, rest[0], rest[1], nil
}

func bindReadFlags(fs *flag.FlagSet, opts *readOptions) {
	fs.StringVar(&opts.Separator, "sep", string(tabular.DefaultComma), "field delimiter of the source file")
	fs.StringVar(&opts.Encoding, "encoding", tabular.DefaultEncoding, "character encoding of the source file")
}

// parseSeparator accepts a single character or the escape \t.
func parseSeparator(s string) (rune, error) {
	if s == `\t` {
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("separator must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	switch r {
	case '\r', '\n', '"', utf8.RuneError:
		return 0, fmt.Errorf("separator %q is not allowed", s)
	}
	return r, nil
}
