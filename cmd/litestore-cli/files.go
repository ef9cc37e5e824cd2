package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lines-of-codes/litestore/clientcli"
)

var uploadRecursive bool

var uploadCmd = &cobra.Command{
	Use:   "upload <local-path> <remote-path>",
	Short: "Upload files",
	Long: `Upload a file, or a directory with -r.

Large files are split into parts as the server plans; each part goes
straight to the storage backend.

Examples:
  litestore-cli upload ./report.pdf /documents/report.pdf
  litestore-cli upload -r ./photos /photos/2024`,
	Args: cobra.ExactArgs(2),
	RunE: runUpload,
}

var downloadOutput string

var downloadCmd = &cobra.Command{
	Use:   "download <remote-path>",
	Short: "Download a file",
	Long: `Download a file. By default it is written to the current directory
under its remote name; use -o - to write to stdout.

Examples:
  litestore-cli download /documents/report.pdf
  litestore-cli download /notes.txt -o - | less`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

var listCmd = &cobra.Command{
	Use:     "list [folder]",
	Aliases: []string{"ls"},
	Short:   "List a folder",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runList,
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <remote-path>",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runNodeOp("Created", func(ctx context.Context, c *clientcli.Client) (clientcli.Node, error) {
			return c.Mkdir(ctx, args[0])
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <remote-path>...",
	Aliases: []string{"rm"},
	Short:   "Permanently delete files and folders",
	Long: `Permanently delete files and folders, including everything inside
folders. Content is removed by a background task on the server; check
it with 'litestore-cli task <id>'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

var trashCmd = &cobra.Command{
	Use:   "trash <remote-path>",
	Short: "Move a file or folder to the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runSimple("Trashed: "+args[0], func(ctx context.Context, c *clientcli.Client) error {
			return c.Trash(ctx, args[0], true)
		})
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <remote-path>",
	Short: "Restore a file or folder from the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runSimple("Restored: "+args[0], func(ctx context.Context, c *clientcli.Client) error {
			return c.Trash(ctx, args[0], false)
		})
	},
}

var moveCmd = &cobra.Command{
	Use:     "move <remote-path> <folder>",
	Aliases: []string{"mv"},
	Short:   "Move a file or folder into another folder",
	Args:    cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return runSimple("Moved: "+args[0]+" -> "+args[1], func(ctx context.Context, c *clientcli.Client) error {
			return c.Move(ctx, args[0], args[1])
		})
	},
}

var copyCmd = &cobra.Command{
	Use:     "copy <remote-path> <folder>",
	Aliases: []string{"cp"},
	Short:   "Copy a file or folder into another folder",
	Args:    cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return runNodeOp("Copied", func(ctx context.Context, c *clientcli.Client) (clientcli.Node, error) {
			return c.Copy(ctx, args[0], args[1])
		})
	},
}

var taskCmd = &cobra.Command{
	Use:   "task <id>",
	Short: "Show a background task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTask,
}

func init() {
	uploadCmd.Flags().BoolVarP(&uploadRecursive, "recursive", "r", false, "upload directory recursively")
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "local path, or - for stdout")
}

func runUpload(_ *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	results, err := client.Upload(context.Background(), clientcli.UploadOptions{
		LocalPath:  args[0],
		RemotePath: args[1],
		Recursive:  uploadRecursive,
	})
	if err != nil {
		return fail(err)
	}

	if err := getFormatter().FormatUpload(os.Stdout, results); err != nil {
		return err
	}

	for i := range results {
		if results[i].Err != nil {
			return results[i].Err
		}
	}
	return nil
}

func runDownload(_ *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	result, body, err := client.Download(context.Background(), clientcli.DownloadOptions{
		RemotePath: args[0],
		LocalPath:  downloadOutput,
	})
	if err != nil {
		return fail(err)
	}

	return writeDownload(result, body)
}

// writeDownload copies a stdout download and reports the result on stderr,
// or reports a file download on stdout.
func writeDownload(result *clientcli.DownloadResult, body io.ReadCloser) error {
	if body == nil {
		return getFormatter().FormatDownload(os.Stdout, result)
	}
	defer func() { _ = body.Close() }()

	written, err := io.Copy(os.Stdout, body)
	if err != nil {
		return err
	}
	result.Size = written
	return getFormatter().FormatDownload(os.Stderr, result)
}

func runList(_ *cobra.Command, args []string) error {
	folder := "/"
	if len(args) > 0 {
		folder = args[0]
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	nodes, err := client.List(context.Background(), folder)
	if err != nil {
		return fail(err)
	}

	return getFormatter().FormatList(os.Stdout, nodes)
}

func runDelete(_ *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	results, err := client.Delete(context.Background(), args)
	if err != nil {
		return fail(err)
	}

	if err := getFormatter().FormatDelete(os.Stdout, results); err != nil {
		return err
	}
	for i := range results {
		if results[i].Err != nil {
			return results[i].Err
		}
	}
	return nil
}

func runTask(_ *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fail(err)
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	task, err := client.Task(context.Background(), id)
	if err != nil {
		return fail(err)
	}

	return getFormatter().FormatTask(os.Stdout, task)
}

func runNodeOp(verb string, op func(ctx context.Context, c *clientcli.Client) (clientcli.Node, error)) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	node, err := op(context.Background(), client)
	if err != nil {
		return fail(err)
	}

	return getFormatter().FormatNode(os.Stdout, verb, node)
}

// runSimple runs an operation without a result and prints msg on success.
func runSimple(msg string, op func(ctx context.Context, c *clientcli.Client) error) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	if err := op(context.Background(), client); err != nil {
		return fail(err)
	}

	if !quiet && !jsonOutput {
		fmt.Println(msg)
	}
	return nil
}
