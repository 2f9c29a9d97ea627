// Package banner prints the gateway's startup banner to stdout. It is
// purely cosmetic and carries no behavior the rest of the gateway
// depends on.
package banner

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
)

func Print(seedPort int, rotateInterval time.Duration, proxyCount int) {
	art := `
███████╗ ██████╗  ██████╗██╗  ██╗███████╗██████╗  ██████╗ ████████╗ █████╗ ████████╗███████╗
██╔════╝██╔═══██╗██╔════╝██║ ██╔╝██╔════╝██╔══██╗██╔═══██╗╚══██╔══╝██╔══██╗╚══██╔══╝██╔════╝
███████╗██║   ██║██║     █████╔╝ ███████╗██████╔╝██║   ██║   ██║   ███████║   ██║   █████╗
╚════██║██║   ██║██║     ██╔═██╗ ╚════██║██╔══██╗██║   ██║   ██║   ██╔══██║   ██║   ██╔══╝
███████║╚██████╔╝╚██████╗██║  ██╗███████║██║  ██║╚██████╔╝   ██║   ██║  ██║   ██║   ███████╗
╚══════╝ ╚═════╝  ╚═════╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝ ╚═════╝    ╚═╝   ╚═╝  ╚═╝   ╚═╝   ╚══════╝
`
	c := color.New(color.FgCyan, color.Bold)
	c.Println(art)

	fmt.Printf("   Rotating SOCKS5 forward-proxy gateway\n")
	fmt.Printf("   Start time: %s\n", time.Now().Format(time.RFC1123))
	fmt.Printf("   Seed port: %d\n", seedPort)
	if rotateInterval <= 0 {
		fmt.Printf("   Rotation: disabled\n")
	} else {
		fmt.Printf("   Rotation interval: %s\n", rotateInterval)
	}
	fmt.Printf("   Live proxies loaded: %d\n", proxyCount)
	fmt.Println(strings.Repeat("-", 60))
}
