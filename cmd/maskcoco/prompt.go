package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// confirm asks a yes/no question until it gets an answer. End of input
// counts as no.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprintf(out, "%s (y/n) ", question)
		line, err := reader.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		if err == io.EOF {
			fmt.Fprintln(out)
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("read answer: %w", err)
		}
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
