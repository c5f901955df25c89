// Command hashpw prints the bcrypt hash for ADMIN_PASSWORD_HASH.
//
//	go run ./cmd/hashpw 'my password'
package main

import (
	"fmt"
	"os"

	"github.com/sentinnell/analytics_api/internal/service"
)

func main() {
	if len(os.Args) != 2 || os.Args[1] == "" {
		fmt.Fprintln(os.Stderr, "usage: hashpw <password>")
		os.Exit(2)
	}
	hash, err := service.HashPassword(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
