// Command portal runs the WebAR marker portal and its offline tooling.
package main

func main() {
	Execute()
}
