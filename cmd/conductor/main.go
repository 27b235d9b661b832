// Command conductor runs the autonomous multi-agent feature
// orchestrator: it claims features from a static catalog, drives an
// external builder against them, and reports progress until the
// backlog drains.
package main

func main() {
	Execute()
}
