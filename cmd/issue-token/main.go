package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/stemsi/quizengine/internal/config"
	"github.com/stemsi/quizengine/internal/model"
	"github.com/stemsi/quizengine/internal/service"
	"golang.org/x/term"
)

func main() {
	var (
		subject   string
		perms     string
		all       bool
		askSecret bool
	)
	flag.StringVar(&subject, "subject", "", "Token subject, e.g. the calling platform's name")
	flag.StringVar(&perms, "perms", "", "Comma-separated permissions")
	flag.BoolVar(&all, "all", false, "Grant every permission")
	flag.BoolVar(&askSecret, "ask-secret", false, "Prompt for the signing secret instead of reading JWT_SECRET")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	reader := bufio.NewReader(os.Stdin)

	if subject == "" && interactive {
		fmt.Println("=== Issue Service Token ===")
		fmt.Print("Enter Subject: ")
		line, _ := reader.ReadString('\n')
		subject = strings.TrimSpace(line)
	}
	if subject == "" {
		fail("subject is required")
	}

	if askSecret {
		if !interactive {
			fail("-ask-secret needs a terminal")
		}
		fmt.Print("Enter Signing Secret: ")
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			fail("reading secret: " + err.Error())
		}
		cfg.JWTSecret = string(secret)
	}
	if len(cfg.JWTSecret) < 16 {
		fail("signing secret must be at least 16 characters")
	}

	granted := model.AllPermissions
	if !all {
		if perms == "" && interactive {
			fmt.Printf("Available: %s\n", joinPermissions(model.AllPermissions))
			fmt.Print("Enter Permissions (comma-separated): ")
			line, _ := reader.ReadString('\n')
			perms = strings.TrimSpace(line)
		}
		var ok bool
		granted, ok = model.ParsePermissions(splitList(perms))
		if !ok {
			fail("unknown permission in " + perms)
		}
		if len(granted) == 0 {
			fail("at least one permission is required")
		}
	}

	// Signing needs no revocation store.
	authService := service.NewAuthService(cfg, nil)
	token, claims, err := authService.GenerateServiceToken(subject, granted)
	if err != nil {
		fail(err.Error())
	}

	if interactive {
		fmt.Printf("\nSuccess! Token %s for '%s' expires %s\n\n", claims.ID, subject, claims.ExpiresAt.Time.Format("2006-01-02 15:04 MST"))
	}
	fmt.Println(token)
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinPermissions(perms []model.Permission) string {
	s := make([]string, len(perms))
	for i, p := range perms {
		s[i] = string(p)
	}
	return strings.Join(s, ", ")
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "Error: "+msg)
	os.Exit(1)
}
