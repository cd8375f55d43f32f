package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"funcreg/internal/api"
	"funcreg/internal/config"
)

// specInputs collects the flags shared by create and update.
type specInputs struct {
	file    string
	outputs []string
	types   []string
}

func (in *specInputs) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&in.file, "file", "f", "", "function definition file (yaml or json, '-' for stdin)")
	cmd.Flags().StringSliceVar(&in.outputs, "output", nil, "output name (repeatable or comma-separated)")
	cmd.Flags().StringArrayVar(&in.types, "type", nil, "function type as type=code-id or type=path (repeatable)")
}

// load merges the definition file with flags. Flags replace the file's lists.
func (in *specInputs) load(cmd *cobra.Command) (functionSpecFile, error) {
	var spec functionSpecFile
	if in.file != "" {
		parsed, err := readSpecFile(in.file, cmd.InOrStdin())
		if err != nil {
			return functionSpecFile{}, err
		}
		spec = parsed
	}
	if cmd.Flags().Changed("output") {
		spec.Outputs = splitCommaList(in.outputs)
	}
	if cmd.Flags().Changed("type") {
		types, err := parseTypeFlags(in.types)
		if err != nil {
			return functionSpecFile{}, err
		}
		spec.Types = types
	}
	return spec, nil
}

func newCreateCmd(cfg *config.Config, opts *globalOptions) *cobra.Command {
	var (
		inputs  specInputs
		id      string
		version string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new function version",
		Example: `  funcreg create -f function.yaml
  funcreg create --id resize --version 1.0 --output image --type python=./resize.py`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := inputs.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("id") {
				spec.ID = id
			}
			if cmd.Flags().Changed("version") {
				spec.Version = version
			}
			if strings.TrimSpace(spec.ID) == "" || strings.TrimSpace(spec.Version) == "" {
				return errors.New("function id and version are required (use --id/--version or a definition file)")
			}
			if len(spec.Types) == 0 {
				return errors.New("at least one function type is required")
			}

			return withClient(cfg, opts, func(client *api.Client) error {
				types, err := stageSpecTypes(cmd.Context(), client, spec.Types)
				if err != nil {
					return err
				}
				fn, err := client.CreateFunction(cmd.Context(), api.FunctionCreateRequest{
					ID:      spec.ID,
					Version: spec.Version,
					Outputs: spec.Outputs,
					Types:   types,
				})
				if err != nil {
					return err
				}
				return writeResult(opts, fn, func() error { return writeFunctionDetail(fn) })
			})
		},
	}

	inputs.bind(cmd)
	cmd.Flags().StringVar(&id, "id", "", "function id")
	cmd.Flags().StringVar(&version, "version", "", "function version")
	return cmd
}

func newUpdateCmd(cfg *config.Config, opts *globalOptions) *cobra.Command {
	var (
		inputs  specInputs
		version string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace the types and outputs of an existing function version",
		Long: `Replace the types and outputs of an existing function version.

Types missing from the new set are removed and their code is released.
Types whose code id changes claim the new code and release the old.
Outputs are kept unless --output or the definition file sets them.`,
		Args: requireFunctionID,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if strings.TrimSpace(version) == "" {
				return errors.New("--version is required")
			}

			spec, err := inputs.load(cmd)
			if err != nil {
				return err
			}
			if spec.ID != "" && spec.ID != id {
				return fmt.Errorf("definition file id %q does not match %q", spec.ID, id)
			}
			if spec.Version != "" && spec.Version != version {
				return fmt.Errorf("definition file version %q does not match --version %q", spec.Version, version)
			}
			if len(spec.Types) == 0 {
				return errors.New("at least one function type is required")
			}

			return withClient(cfg, opts, func(client *api.Client) error {
				if len(spec.Outputs) == 0 {
					current, err := client.GetFunction(cmd.Context(), id, version, "")
					if err != nil {
						return err
					}
					spec.Outputs = current.Outputs
				}
				types, err := stageSpecTypes(cmd.Context(), client, spec.Types)
				if err != nil {
					return err
				}
				fn, err := client.UpdateFunction(cmd.Context(), id, version, api.FunctionUpdateRequest{
					Outputs: spec.Outputs,
					Types:   types,
				})
				if err != nil {
					return err
				}
				return writeResult(opts, fn, func() error { return writeFunctionDetail(fn) })
			})
		},
	}

	inputs.bind(cmd)
	cmd.Flags().StringVar(&version, "version", "", "function version to update (required)")
	return cmd
}

func newGetCmd(cfg *config.Config, opts *globalOptions) *cobra.Command {
	var version, typ string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a function version (default: latest)",
		Args:  requireFunctionID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, opts, func(client *api.Client) error {
				fn, err := client.GetFunction(cmd.Context(), strings.TrimSpace(args[0]), version, typ)
				if err != nil {
					return err
				}
				return writeResult(opts, fn, func() error { return writeFunctionDetail(fn) })
			})
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "function version")
	cmd.Flags().StringVar(&typ, "type", "", "only show this function type")
	return cmd
}

func newVersionsCmd(cfg *config.Config, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <id>",
		Short: "List the versions of a function",
		Args:  requireFunctionID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, opts, func(client *api.Client) error {
				versions, err := client.FunctionVersions(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				return writeResult(opts, versions, func() error {
					for _, v := range versions.Versions {
						if err := writePlain("%s\n", v); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
}

func newDeleteCmd(cfg *config.Config, opts *globalOptions) *cobra.Command {
	var version, typ string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a function, one of its versions, or one type of a version",
		Args:  requireFunctionID,
		RunE: func(cmd *cobra.Command, args []string) error {
			if typ != "" && version == "" {
				return errors.New("--type requires --version")
			}
			return withClient(cfg, opts, func(client *api.Client) error {
				result, err := client.DeleteFunction(cmd.Context(), strings.TrimSpace(args[0]), version, typ)
				if err != nil {
					return err
				}
				return writeResult(opts, result, func() error {
					return writePlain("deleted %d function %s\n", result.DeletedCount, pluralize(result.DeletedCount, "row", "rows"))
				})
			})
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "only delete this version")
	cmd.Flags().StringVar(&typ, "type", "", "only delete this type (requires --version)")
	return cmd
}

func newListCmd(cfg *config.Config, opts *globalOptions) *cobra.Command {
	var (
		offset int
		limit  int
		search string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List functions ordered by id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if offset < 0 || limit < 0 {
				return errors.New("--offset and --limit must be >= 0")
			}
			return withClient(cfg, opts, func(client *api.Client) error {
				list, err := client.ListFunctions(cmd.Context(), api.FunctionListQuery{
					Offset:        offset,
					Limit:         limit,
					PartialSearch: search,
				})
				if err != nil {
					return err
				}
				return writeResult(opts, list, func() error { return writeFunctionList(list) })
			})
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "number of functions to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (default: server default)")
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive id substring")
	return cmd
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

