package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wpnative/instant-articles/internal/store"
)

var (
	transformFormat string
	transformPost   string
)

var transformCmd = &cobra.Command{
	Use:   "transform [file]",
	Short: "Transform content into instant article markup",
	Long: `Transform post content read from a file, or from stdin when the file is
"-" or omitted. With --post the stored post is served through the article
cache instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTransform,
}

func init() {
	transformCmd.Flags().StringVar(&transformFormat, "format", "html", "Content format (html, markdown)")
	transformCmd.Flags().StringVar(&transformPost, "post", "", "Stored post ID to transform")
	rootCmd.AddCommand(transformCmd)
}

func runTransform(cmd *cobra.Command, args []string) error {
	if transformPost != "" && len(args) > 0 {
		return errors.New("--post and a file are mutually exclusive")
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if transformPost != "" {
		id, err := strconv.ParseInt(transformPost, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid post id %q", transformPost)
		}
		res, err := a.Articles.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Body)
		return err
	}

	content, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	out, err := a.Articles.Preview(cmd.Context(), store.Post{Content: content, Format: transformFormat})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return string(b), nil
}
