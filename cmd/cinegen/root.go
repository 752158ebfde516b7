// cmd/cinegen/root.go
package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ashrithajanga/CineGen/internal/app"
	"github.com/ashrithajanga/CineGen/internal/config"
	"github.com/ashrithajanga/CineGen/internal/di"
	"github.com/ashrithajanga/CineGen/internal/utils"
	"github.com/spf13/cobra"
)

// newRootCmd 构建命令树，每次调用返回新的实例
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cinegen",
		Short:         "剧本生成、改写、角色改名与分页导出",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newServeCmd(),
		newGenerateCmd(),
		newRewriteCmd(),
		newCampaignCmd(),
		newProjectsCmd(),
		newCharactersCmd(),
		newRenameCmd(),
		newExportCmd(),
		newCredentialsCmd(),
	)
	return root
}

// withContainer 加载配置并构建服务容器，结束后关闭存储
func withContainer(fn func(cfg *config.Config, c *di.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	container, store, err := app.BuildContainer(cfg, utils.GetLogger(), nil)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(cfg, container)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("加载配置失败: %w", err)
			}
			if err := cfg.EnsureDirs(); err != nil {
				return err
			}
			if err := app.InitLogger(cfg); err != nil {
				return err
			}

			a, err := app.New(cfg, utils.GetLogger())
			if err != nil {
				return err
			}
			return a.Run()
		},
	}
}
