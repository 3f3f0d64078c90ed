// One-off client-credentials exchange against the MOT token endpoint.
// Prints the access token and its expiry so an operator can verify the
// configured credentials before deploying.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

func main() {
	tokenURL := os.Getenv("MOT_TOKEN_URL")
	clientID := os.Getenv("MOT_CLIENT_ID")
	clientSecret := os.Getenv("MOT_CLIENT_SECRET")
	scope := os.Getenv("MOT_SCOPE")

	if tokenURL == "" || clientID == "" || clientSecret == "" || scope == "" {
		log.Fatal("MOT_TOKEN_URL, MOT_CLIENT_ID, MOT_CLIENT_SECRET and MOT_SCOPE must be set")
	}

	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{scope},
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	token, err := config.Token(ctx)
	if err != nil {
		log.Fatalf("Credential exchange failed: %v", err)
	}

	fmt.Printf("\nAccess Token: %s\n", token.AccessToken)
	fmt.Printf("Expires: %s\n\n", token.Expiry.Format(time.RFC3339))
}
