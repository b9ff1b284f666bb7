package main

import (
	"fmt"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
)

// Hashes an API key for the API_KEY_HASH environment variable.
func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <api-key>\n", os.Args[0])
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(os.Args[1]), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash key: %v", err)
	}

	fmt.Printf("✅ API key hashed successfully!\n")
	fmt.Printf("   Set in your environment:\n")
	fmt.Printf("   API_KEY_HASH='%s'\n", string(hash))
}
