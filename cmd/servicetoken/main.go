// Command servicetoken prints a short-lived service token for the
// retention worker's status endpoints.
//
//	RETENTION_INTERNAL_SECRET=... servicetoken -issuer ops | \
//	  xargs -I{} curl -H "Authorization: Bearer {}" localhost:8090/retention/runs
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"mailboxapi/internal/servicetoken"
)

func main() {
	_ = godotenv.Load()

	issuer := flag.String("issuer", "ops", "token issuer, must be in the worker's allowed issuers")
	audience := flag.String("audience", "retention", "token audience")
	keyID := flag.String("kid", servicetoken.DefaultKeyID, "key id of the signing secret")
	ttl := flag.Duration("ttl", 5*time.Minute, "token lifetime")
	flag.Parse()

	signer, err := servicetoken.NewSignerWithOptions(servicetoken.SignerOptions{
		Secret: os.Getenv("RETENTION_INTERNAL_SECRET"),
		KeyID:  *keyID,
		Issuer: *issuer,
		TTL:    *ttl,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "servicetoken: %v\n", err)
		os.Exit(1)
	}
	token, err := signer.Sign(*audience)
	if err != nil {
		fmt.Fprintf(os.Stderr, "servicetoken: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
