// Command tapestry runs the headless command engine: replaying scripts,
// serving sessions over HTTP or MCP and inspecting session journals.
package main

func main() {
	Execute()
}
