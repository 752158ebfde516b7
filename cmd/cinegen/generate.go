// cmd/cinegen/generate.go
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ashrithajanga/CineGen/internal/config"
	"github.com/ashrithajanga/CineGen/internal/di"
	"github.com/ashrithajanga/CineGen/internal/models"
	"github.com/ashrithajanga/CineGen/internal/services"
	"github.com/spf13/cobra"
)

func printProject(w io.Writer, p *models.Project, asJSON bool) error {
	if asJSON {
		return printJSON(w, p)
	}
	fmt.Fprintf(w, "已归档项目 %s\n标题: %s\n类型: %s / %s / %s\n模型: %s\n",
		p.ID, p.Title, p.Genre, p.Tone, p.Length, p.ProviderID)
	return nil
}

func newGenerateCmd() *cobra.Command {
	var (
		req    services.WriteRequest
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:     "generate <concept>",
		Short:   "根据故事概念生成剧本、角色小传与声音设计",
		Example: `  cinegen generate "A heist gone wrong" --genre Thriller --tone Suspenseful`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Title = args[0]
			return withContainer(func(_ *config.Config, c *di.Container) error {
				studio, err := di.Resolve[*services.StudioService](c, di.ServiceStudio)
				if err != nil {
					return err
				}
				project, err := studio.Write(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printProject(cmd.OutOrStdout(), project, asJSON)
			})
		},
	}
	cmd.Flags().StringVar(&req.Genre, "genre", "", "类型（默认取目录第一项）")
	cmd.Flags().StringVar(&req.Tone, "tone", "", "基调")
	cmd.Flags().StringVar(&req.Length, "length", "", "篇幅")
	cmd.Flags().StringVar(&req.Language, "language", "", "输出语言")
	cmd.Flags().StringVar(&req.ProviderID, "provider", "", "生成后端 ID（默认 DEFAULT_PROVIDER）")
	cmd.Flags().BoolVar(&asJSON, "json", false, "输出完整 JSON")
	return cmd
}

func newRewriteCmd() *cobra.Command {
	var (
		req    services.RewriteRequest
		file   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:     "rewrite",
		Short:   "按修改说明改写已有剧本",
		Example: `  cinegen rewrite --file scene.txt --instructions "Make it funnier"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			req.Script = script
			return withContainer(func(_ *config.Config, c *di.Container) error {
				studio, err := di.Resolve[*services.StudioService](c, di.ServiceStudio)
				if err != nil {
					return err
				}
				project, err := studio.Rewrite(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printProject(cmd.OutOrStdout(), project, asJSON)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "剧本文本文件（'-' 为标准输入）")
	cmd.Flags().StringVarP(&req.Instructions, "instructions", "i", "", "修改说明")
	cmd.Flags().StringVar(&req.Language, "language", "", "输出语言")
	cmd.Flags().StringVar(&req.ProviderID, "provider", "", "生成后端 ID")
	cmd.Flags().BoolVar(&asJSON, "json", false, "输出完整 JSON")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("instructions")
	return cmd
}

// readInput 读取文件，'-' 时读取标准输入
func readInput(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("读取剧本失败: %w", err)
	}
	return string(data), nil
}

func newCampaignCmd() *cobra.Command {
	var req services.CampaignRequest
	cmd := &cobra.Command{
		Use:   "campaign <topic>",
		Short: "生成多平台社媒文案（不归档）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Topic = args[0]
			return withContainer(func(_ *config.Config, c *di.Container) error {
				campaigns, err := di.Resolve[*services.CampaignService](c, di.ServiceCampaign)
				if err != nil {
					return err
				}
				campaign, err := campaigns.Generate(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), campaign)
			})
		},
	}
	cmd.Flags().StringVar(&req.Language, "language", "", "输出语言")
	cmd.Flags().StringVar(&req.ProviderID, "provider", "", "生成后端 ID")
	return cmd
}
