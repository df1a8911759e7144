// tokengen mints caller JWTs for exercising the HTTP API in development:
//
//	JWT_SECRET=dev tokengen -user 1 -roles USER,ADMIN -ttl 24h
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ledgerkit/account-service/internal/auth"
)

func main() {
	userID := flag.Int64("user", 1, "caller user id")
	roles := flag.String("roles", "USER", "comma-separated roles")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is required")
		os.Exit(1)
	}

	caller := auth.Caller{ID: *userID, Roles: splitRoles(*roles)}
	token, err := auth.GenerateToken(caller, secret, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func splitRoles(s string) []string {
	var roles []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
