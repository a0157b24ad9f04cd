package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/artpar/jobtemplates/internal/shell/client"
	"github.com/artpar/jobtemplates/internal/shell/seed"
)

const defaultServer = "http://localhost:8080"

// cli carries the state shared by all subcommands.
type cli struct {
	v          *viper.Viper
	out        io.Writer
	jsonOutput bool
	client     *client.Client
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), out: out}

	root := &cobra.Command{
		Use:           "jobtemplatectl",
		Short:         "Manage job templates",
		Long:          `jobtemplatectl lists, creates, updates and deletes job templates on a jobtemplates server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.client = client.NewClient(client.Config{
				BaseURL: c.v.GetString("server"),
				Timeout: c.v.GetDuration("timeout"),
			}, nil)
			return nil
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.String("server", defaultServer, "Server base URL (env JOBTEMPLATES_SERVER)")
	flags.Duration("timeout", 10*time.Second, "Request timeout")
	flags.BoolVar(&c.jsonOutput, "json", false, "Output in JSON format")

	c.v.SetEnvPrefix("JOBTEMPLATES")
	c.v.AutomaticEnv()
	c.v.BindPFlag("server", flags.Lookup("server"))
	c.v.BindPFlag("timeout", flags.Lookup("timeout"))

	root.AddCommand(
		c.listCmd(),
		c.getCmd(),
		c.writeCmd("create", "Create or overwrite a job template"),
		c.writeCmd("update", "Replace the body of an existing job template"),
		c.deleteCmd(),
		versionCmd(out),
	)
	return root
}

func versionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(out, "jobtemplatectl version %s\n", Version)
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List job templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			templates, err := c.client.List(cmd.Context())
			if err != nil {
				return err
			}

			if c.jsonOutput {
				return c.printJSON(templates)
			}

			if len(templates) == 0 {
				fmt.Fprintln(c.out, "No job templates")
				return nil
			}
			w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tUPDATED")
			for _, t := range templates {
				fmt.Fprintf(w, "%s\t%s\n", t.Name, t.UpdatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Print a job template body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := c.client.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if t == nil {
				return fmt.Errorf("job template %q not found", args[0])
			}
			if c.jsonOutput {
				return c.printJSON(t)
			}
			return c.printJSON(t.Template)
		},
	}
}

// writeCmd builds the create and update commands, which share their flags.
func (c *cli) writeCmd(verb, short string) *cobra.Command {
	var file, inline string

	cmd := &cobra.Command{
		Use:   verb + " <name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readBody(file, inline)
			if err != nil {
				return err
			}

			if verb == "create" {
				_, err = c.client.Create(cmd.Context(), args[0], body)
			} else {
				_, err = c.client.Update(cmd.Context(), args[0], body)
			}
			if err != nil {
				return err
			}

			if c.jsonOutput {
				return c.printJSON(map[string]bool{"result": true})
			}
			fmt.Fprintf(c.out, "%sd %s\n", verb, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the template body from a JSON or YAML file")
	cmd.Flags().StringVarP(&inline, "template", "t", "", "Template body as inline JSON")
	cmd.MarkFlagsMutuallyExclusive("file", "template")
	cmd.MarkFlagsOneRequired("file", "template")
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a job template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			existed, err := c.client.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if c.jsonOutput {
				return c.printJSON(map[string]bool{"result": existed})
			}
			if existed {
				fmt.Fprintf(c.out, "deleted %s\n", args[0])
			} else {
				fmt.Fprintf(c.out, "%s did not exist\n", args[0])
			}
			return nil
		},
	}
}

func (c *cli) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readBody loads a template body from a file (JSON, or YAML by extension)
// or from an inline JSON string.
func readBody(file, inline string) (json.RawMessage, error) {
	if inline != "" {
		if !json.Valid([]byte(inline)) {
			return nil, errors.New("--template is not valid JSON")
		}
		return json.RawMessage(inline), nil
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}

	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		body, err := seed.BodyFromYAML(content)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		return body, nil
	default:
		if !json.Valid(content) {
			return nil, fmt.Errorf("%s is not valid JSON", file)
		}
		return json.RawMessage(content), nil
	}
}
