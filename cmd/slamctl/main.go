// Command slamctl exercises and inspects the slam allocator.
package main

func main() {
	execute()
}
