// The main package for the resolver executable.
package main

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	Execute()
}
