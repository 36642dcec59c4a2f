// Command ouroinspect is a debug tool for querying a live OuroborosFS node
// over its wire protocol and rendering the response as JSON, in the spirit
// of the teacher's xmeta tool for picking apart cluster control structures
// from the command line.
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var flags struct {
	addr string
	what string
	name string
}

const helpMsg = `Examples:
	ouroinspect -addr=127.0.0.1:7001 -what=status
	ouroinspect -addr=127.0.0.1:7001 -what=netmap
	ouroinspect -addr=127.0.0.1:7001 -what=topology
	ouroinspect -addr=127.0.0.1:7001 -what=tags
	ouroinspect -addr=127.0.0.1:7001 -what=pull -name=myfile.txt
`

func init() {
	flag.StringVar(&flags.addr, "addr", "127.0.0.1:7001", "node address to query")
	flag.StringVar(&flags.what, "what", "status", "status|netmap|topology|tags|pull")
	flag.StringVar(&flags.name, "name", "", "file name, required for -what=pull")
}

func main() {
	flag.Parse()
	if flag.NArg() > 0 && flag.Arg(0) == "help" {
		fmt.Print(helpMsg)
		os.Exit(0)
	}

	header, wantsJSON, err := headerFor(flags.what, flags.name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	resp, err := query(flags.addr, header)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query failed: %v\n", err)
		os.Exit(1)
	}

	if !wantsJSON {
		fmt.Print(resp)
		return
	}
	printAsJSON(flags.what, resp)
}

func headerFor(what, name string) (string, bool, error) {
	switch what {
	case "status":
		return "NODE STATUS", true, nil
	case "netmap":
		return "NETMAP GET", true, nil
	case "topology":
		return "TOPOLOGY WALK", true, nil
	case "tags":
		return "FILE LIST", true, nil
	case "pull":
		if name == "" {
			return "", false, fmt.Errorf("-name is required for -what=pull")
		}
		return "FILE PULL " + name, false, nil
	default:
		return "", false, fmt.Errorf("unknown -what=%q", what)
	}
}

// query opens one short-lived connection, sends header, and reads the
// reply: for table-dumping commands that's every line until the peer
// closes the socket; raw streams (pull) are returned unparsed.
func query(addr, header string) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "%s\n", header); err != nil {
		return "", err
	}

	data, err := io.ReadAll(conn)
	return string(data), err
}

func printAsJSON(what, resp string) {
	lines := strings.Split(strings.TrimRight(resp, "\n"), "\n")
	var out any
	switch what {
	case "status":
		out = parseKV(lines[0])
	case "netmap", "tags":
		out = lines
	case "topology":
		out = lines
	default:
		out = lines
	}
	data, err := jsoniter.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode response: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func parseKV(line string) map[string]string {
	out := map[string]string{}
	for _, field := range strings.Fields(line) {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) == 2 {
			out[kv[0]] = kv[1]
		}
	}
	return out
}
