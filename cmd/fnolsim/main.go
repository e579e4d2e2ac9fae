// Command fnolsim plays back the FNOL claim workflow.
package main

func main() {
	Execute()
}
