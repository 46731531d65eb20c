// Command seo-pinger notifies search engines and ping services about new
// sitemaps, feeds and pages.
package main

import (
	"os"

	"github.com/jonesrussell/seo-pinger/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
