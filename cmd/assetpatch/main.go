// Assetpatch hashes game assets into a versioned manifest and builds hot-update patch archives.
package main

import "github.com/albertocavalcante/assetpatch/cmd/assetpatch/internal/cli"

func main() {
	cli.Execute()
}
