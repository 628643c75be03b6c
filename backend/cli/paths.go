package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"quicknginx/backend/domain"
)

func pathsTable(p domain.Paths) kvTable {
	return kvTable{
		{"bin", p.Bin},
		{"conf", p.Conf},
		{"confDir", p.ConfDir},
		{"logDir", p.LogDir},
		{"runDir", p.RunDir},
	}
}

func newPathsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paths",
		Short: "查看或修改 nginx 路径",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPathsGet(cmd, opts)
		},
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "查看当前路径",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPathsGet(cmd, opts)
		},
	}

	var bin, conf string
	set := &cobra.Command{
		Use:   "set",
		Short: "修改路径（两者都必须存在），随后重新执行权限初始化",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bin == "" && conf == "" {
				return fmt.Errorf("至少指定 --bin 或 --conf")
			}
			p, err := opts.printer()
			if err != nil {
				return err
			}
			res, err := opts.client().UpdatePaths(cmd.Context(), bin, conf)
			if err != nil {
				return err
			}
			if res.BootstrapError != "" {
				_, _ = fmt.Fprintf(opts.err, "权限初始化失败: %s\n", res.BootstrapError)
			}
			if p.format == FormatTable {
				return p.Print(pathsTable(res.Paths))
			}
			return p.Print(res)
		},
	}
	set.Flags().StringVar(&bin, "bin", "", "nginx 可执行文件")
	set.Flags().StringVar(&conf, "conf", "", "nginx 主配置文件")

	cmd.AddCommand(get, set)
	return cmd
}

func runPathsGet(cmd *cobra.Command, opts *rootOptions) error {
	p, err := opts.printer()
	if err != nil {
		return err
	}
	paths, err := opts.client().Paths(cmd.Context())
	if err != nil {
		return err
	}
	if p.format == FormatTable {
		return p.Print(pathsTable(paths))
	}
	return p.Print(paths)
}
