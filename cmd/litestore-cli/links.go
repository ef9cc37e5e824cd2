package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lines-of-codes/litestore/clientcli"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Manage share links",
	Long: `Share files with anyone through links. A link can expire, require a
password and allow a limited number of downloads.`,
}

var (
	linkExpires  time.Duration
	linkPassword string
	linkLimit    int
)

var linkCreateCmd = &cobra.Command{
	Use:   "create <remote-path>",
	Short: "Share a file",
	Long: `Share a file and print the link id.

Examples:
  litestore-cli link create /documents/report.pdf
  litestore-cli link create /photos/cat.jpg --expires 72h --limit 3 --password s3cret`,
	Args: cobra.ExactArgs(1),
	RunE: runLinkCreate,
}

var linkListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List your share links",
	Args:    cobra.NoArgs,
	RunE:    runLinkList,
}

var linkInfoCmd = &cobra.Command{
	Use:   "info <id>",
	Short: "Show the public details of a link",
	Args:  cobra.ExactArgs(1),
	RunE:  runLinkInfo,
}

var (
	linkClearPassword bool
	linkClearExpiry   bool
	linkClearLimit    bool
)

var linkEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change the expiry, password or download limit of a link",
	Args:  cobra.ExactArgs(1),
	RunE:  runLinkEdit,
}

var linkDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a link",
	Args:    cobra.ExactArgs(1),
	RunE:    runLinkDelete,
}

var linkGetOutput string

var linkGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Download the file behind a link",
	Long: `Redeem a link and download its file. Works without logging in.
Pass --password for protected links.`,
	Args: cobra.ExactArgs(1),
	RunE: runLinkGet,
}

func init() {
	for _, cmd := range []*cobra.Command{linkCreateCmd, linkEditCmd} {
		cmd.Flags().DurationVar(&linkExpires, "expires", 0, "link lifetime, e.g. 24h")
		cmd.Flags().StringVar(&linkPassword, "password", "", "password required to download")
		cmd.Flags().IntVar(&linkLimit, "limit", 0, "maximum number of downloads")
	}
	linkEditCmd.Flags().BoolVar(&linkClearPassword, "clear-password", false, "remove the password")
	linkEditCmd.Flags().BoolVar(&linkClearExpiry, "clear-expires", false, "remove the expiry")
	linkEditCmd.Flags().BoolVar(&linkClearLimit, "clear-limit", false, "remove the download limit")
	linkEditCmd.MarkFlagsMutuallyExclusive("password", "clear-password")
	linkEditCmd.MarkFlagsMutuallyExclusive("expires", "clear-expires")
	linkEditCmd.MarkFlagsMutuallyExclusive("limit", "clear-limit")
	linkGetCmd.Flags().StringVar(&linkPassword, "password", "", "link password")
	linkGetCmd.Flags().StringVarP(&linkGetOutput, "output", "o", "", "local path, or - for stdout")

	linkCmd.AddCommand(linkCreateCmd)
	linkCmd.AddCommand(linkListCmd)
	linkCmd.AddCommand(linkInfoCmd)
	linkCmd.AddCommand(linkEditCmd)
	linkCmd.AddCommand(linkDeleteCmd)
	linkCmd.AddCommand(linkGetCmd)
}

// linkOptions turns the flags the user set into link options.
func linkOptions(cmd *cobra.Command) (clientcli.LinkOptions, error) {
	var opts clientcli.LinkOptions

	if cmd.Flags().Changed("expires") {
		if linkExpires <= 0 {
			return opts, errors.New("--expires must be positive")
		}
		t := time.Now().Add(linkExpires).UTC()
		opts.ExpiresAt = &t
	}
	if cmd.Flags().Changed("password") {
		p := linkPassword
		opts.Password = &p
	}
	if cmd.Flags().Changed("limit") {
		if linkLimit < 1 {
			return opts, errors.New("--limit must be at least 1")
		}
		l := linkLimit
		opts.DownloadLimit = &l
	}

	return opts, nil
}

func runLinkCreate(cmd *cobra.Command, args []string) error {
	opts, err := linkOptions(cmd)
	if err != nil {
		return fail(err)
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	id, err := client.CreateLink(context.Background(), args[0], opts)
	if err != nil {
		return fail(err)
	}

	if jsonOutput {
		fmt.Printf("{\"uuid\": %q}\n", id)
		return nil
	}
	fmt.Println(id)
	return nil
}

func runLinkList(_ *cobra.Command, _ []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	links, err := client.Links(context.Background())
	if err != nil {
		return fail(err)
	}

	return getFormatter().FormatLinks(os.Stdout, links)
}

func runLinkInfo(_ *cobra.Command, args []string) error {
	client, err := getAnonymousClient()
	if err != nil {
		return err
	}

	info, err := client.LinkInfo(context.Background(), args[0])
	if err != nil {
		return fail(err)
	}

	return getFormatter().FormatLinkInfo(os.Stdout, info)
}

func runLinkEdit(cmd *cobra.Command, args []string) error {
	opts, err := linkOptions(cmd)
	if err != nil {
		return fail(err)
	}
	if linkClearPassword {
		empty := ""
		opts.Password = &empty
	}
	opts.ClearExpiry = linkClearExpiry
	opts.ClearDownloadLimit = linkClearLimit
	if opts == (clientcli.LinkOptions{}) {
		return fail(errors.New("nothing to change: set --expires, --password or --limit, or one of the --clear flags"))
	}

	return runSimple("Updated: "+args[0], func(ctx context.Context, c *clientcli.Client) error {
		return c.EditLink(ctx, args[0], opts)
	})
}

func runLinkDelete(_ *cobra.Command, args []string) error {
	return runSimple("Deleted: "+args[0], func(ctx context.Context, c *clientcli.Client) error {
		return c.DeleteLink(ctx, args[0])
	})
}

func runLinkGet(_ *cobra.Command, args []string) error {
	client, err := getAnonymousClient()
	if err != nil {
		return err
	}

	result, body, err := client.RedeemLink(context.Background(), args[0], linkPassword, linkGetOutput)
	if err != nil {
		return fail(err)
	}

	return writeDownload(result, body)
}
