// Package banner prints the startup banner.
package banner

import (
	"fmt"
	"io"
)

// Version is the service version shown at startup.
const Version = "0.3.0"

const art = `
       _ _        _     _        _
__   _(_) |_ __ _| |___| |_ __ _| |_ ___
\ \ / / | __/ _` + "`" + ` | / __| __/ _` + "`" + ` | __/ __|
 \ V /| | || (_| | \__ \ || (_| | |_\__ \
  \_/ |_|\__\__,_|_|___/\__\__,_|\__|___/
        v%s - Estatísticas Vitais do Brasil
`

// Print writes the banner to w.
func Print(w io.Writer) {
	fmt.Fprintf(w, art, Version)
	fmt.Fprintln(w, "------------------------------------------------")
}
