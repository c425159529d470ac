package cmd

import (
	"fmt"
	"io"
)

const banner = `
                      _                           _
  ___  ___  ___ ___(_) ___  _ __   __ _  __ _| |_ ___
 / __|/ _ \/ __/ __| |/ _ \| '_ \ / _` + "`" + ` |/ _` + "`" + ` | __/ _ \
 \__ \  __/\__ \__ \ | (_) | | | | (_| | (_| | ||  __/
 |___/\___||___/___/_|\___/|_| |_|\__, |\__,_|\__\___|
                                  |___/
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m", banner)
	fmt.Fprintf(w, "\x1b[32m  Reference auth backend - Version %s\x1b[0m\n\n", Version)
}
