package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jmcleod/sessiongate/credential"
)

// readPassword returns flagValue, or the first line of in when fromStdin is set.
func readPassword(in io.Reader, flagValue string, fromStdin bool) (string, error) {
	if !fromStdin {
		return flagValue, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// validationError turns field violations into one error listing each message.
func validationError(r credential.Result) error {
	var b strings.Builder
	b.WriteString("invalid input:")
	for _, v := range r.Violations {
		fmt.Fprintf(&b, "\n  %s: %s", v.Field, v.Message)
	}
	return errors.New(b.String())
}
