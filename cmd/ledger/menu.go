package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jmerrifield20/chainledger/internal/chain"
	"github.com/spf13/cobra"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Run the interactive ledger menu on an in-process chain",
	Long: `menu starts a local chain holding only the genesis record and loops over
a numbered menu until you choose Exit or close stdin:

  1. Add a new record
  2. Display the chain
  3. Verify chain integrity
  4. Analyze the chain
  5. Search for a record by payload
  6. Exit

Nothing is persisted; use ledgerd for a durable ledger.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := chain.DigesterByName(menuDigest)
		if err != nil {
			return err
		}
		return runMenu(cmd.InOrStdin(), cmd.OutOrStdout(), chain.New(chain.WithDigester(d)))
	},
}

var menuDigest string

func init() {
	menuCmd.Flags().StringVar(&menuDigest, "digest", "xxhash",
		"Digest function: "+strings.Join(chain.DigesterNames(), ", "))
}

// runMenu drives the interactive loop until choice 6 or EOF on in.
func runMenu(in io.Reader, out io.Writer, c *chain.Chain) error {
	br := bufio.NewReader(in)
	var readErr error
	// readLine returns one input line of any length without its terminator.
	// A final line without a newline is still returned; the read after it
	// reports false.
	readLine := func(prompt string) (string, bool) {
		fmt.Fprint(out, prompt)
		line, err := br.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = fmt.Errorf("read input: %w", err)
				return "", false
			}
			if line == "" {
				return "", false
			}
		}
		return strings.TrimRight(line, "\r\n"), true
	}

	for {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Ledger Menu:")
		fmt.Fprintln(out, "1. Add a new record")
		fmt.Fprintln(out, "2. Display the chain")
		fmt.Fprintln(out, "3. Verify chain integrity")
		fmt.Fprintln(out, "4. Analyze the chain")
		fmt.Fprintln(out, "5. Search for a record by payload")
		fmt.Fprintln(out, "6. Exit")

		line, ok := readLine("Enter your choice: ")
		if !ok {
			return readErr
		}

		choice, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			choice = 0
		}

		switch choice {
		case 1:
			payload, ok := readLine("Enter payload for the new record: ")
			if !ok {
				return readErr
			}
			r := c.Append(payload)
			fmt.Fprintf(out, "Record %d added.\n", r.Index)
		case 2:
			for r := range c.All() {
				printRecord(out, viewOf(r))
			}
		case 3:
			err := c.Verify()
			fmt.Fprintf(out, "Is the chain valid? %s\n", yesNo(err == nil))
			var ie *chain.IntegrityError
			if errors.As(err, &ie) {
				fmt.Fprintf(out, "First failure at record %d: %s\n", ie.Index, ie.Reason())
			}
		case 4:
			printReport(out, reportOf(c.Analyze()))
		case 5:
			query, ok := readLine("Enter the payload to search for: ")
			if !ok {
				return readErr
			}
			if r, found := c.FindByPayload(query); found {
				fmt.Fprintln(out, "Record found:")
				printRecord(out, viewOf(r))
			} else {
				fmt.Fprintf(out, "No record found with payload: %s\n", query)
			}
		case 6:
			fmt.Fprintln(out, "Exiting...")
			return nil
		default:
			fmt.Fprintln(out, "Invalid choice. Please try again.")
		}
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
