// Package tests holds fixtures for the suppression analyzer: nodes
// annotated with a do-not-report comment, in the comment positions the
// analyzer recognizes.
package tests

import "fmt"

// tcta.DoNotReport
func suppressedFunc() { // want "suppressed"
	fmt.Println("out")
}

func unsuppressedFunc() {
	fmt.Println("out")
}

func suppressedCall() {
	// tcta.DoNotReport
	fmt.Println("out") // want "suppressed"
}
