package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/noah-isme/sessionguard/internal/client"
)

func main() {
	var (
		baseURL    string
		username   string
		password   string
		ipServices string
		timeout    time.Duration
	)

	flag.StringVar(&baseURL, "base", "http://localhost:8080/api/v1", "API base URL including prefix")
	flag.StringVar(&username, "username", "", "Telegram username; when set, log in and list devices")
	flag.StringVar(&password, "password", "", "Password for -username")
	flag.StringVar(&ipServices, "ip-services", "https://api.ipify.org?format=json#ip,https://httpbin.org/ip#origin", "Comma separated url#key echo services")
	flag.DurationVar(&timeout, "timeout", 15*time.Second, "Overall timeout")
	flag.Parse()

	c, err := client.New(client.Config{BaseURL: baseURL, IPServices: splitList(ipServices)})
	if err != nil {
		log.Fatalf("failed to build client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	signals, local := c.Fingerprint(ctx)
	fmt.Printf("local fingerprint:  %s (degraded=%t, components=%d)\n", local.Fingerprint, local.Degraded, len(signals.Components()))

	remote, err := c.DeriveRemote(ctx, signals)
	if err != nil {
		log.Fatalf("server derivation failed: %v", err)
	}
	fmt.Printf("server fingerprint: %s (degraded=%t)\n", remote.Fingerprint, remote.Degraded)

	public := c.PublicIP(ctx)
	fmt.Printf("public ip:          %s (source=%s, attempts=%d)\n", public.IP, public.Source, len(public.Attempts))
	if seen, err := c.ServerSeenIP(ctx); err == nil {
		fmt.Printf("server-seen ip:     %s (source=%s)\n", seen.IP, seen.Source)
	}

	mismatch := remote.Fingerprint != local.Fingerprint
	if mismatch {
		fmt.Println("MISMATCH: client and server derive different fingerprints")
	}

	if username != "" {
		res, err := c.Login(ctx, username, password)
		if err != nil {
			log.Fatalf("login failed: %v", err)
		}
		fmt.Printf("logged in, redirect=%s superseded=%d\n", res.Redirect, res.Superseded)

		overview, err := c.Devices(ctx)
		if err != nil {
			log.Printf("list devices failed: %v", err)
		} else {
			for _, d := range overview.Devices {
				marker := " "
				if d.IsCurrent {
					marker = "*"
				}
				fmt.Printf("%s %s  %-24s blocked=%t active=%d logins=%d\n", marker, d.DeviceFingerprint, d.DeviceName, d.IsBlocked, d.ActiveSessions, d.TotalLogins)
			}
		}

		if err := c.Logout(ctx); err != nil {
			log.Printf("logout failed: %v", err)
		}
	}

	if mismatch {
		os.Exit(1)
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
