// Command aht generates synthetic advice-taking cohorts and trains the
// offline ad hoc teamwork agent on them.
package main

func main() {
	Execute()
}
