// Command docs-crawler is the CLI entrypoint. It only wires flags to the
// session manager; all behavior lives in internal/cli and internal/session.
package main

import cmd "github.com/hlopes/crawld/internal/cli"

func main() {
	cmd.Execute()
}
