package cli

type readOptions struct {
	Separator string
	Encoding  string
}

type convertOptions struct {
	readOptions
	Format string
}
