// cmd/cinegen/projects.go
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/ashrithajanga/CineGen/internal/config"
	"github.com/ashrithajanga/CineGen/internal/di"
	"github.com/ashrithajanga/CineGen/internal/services"
	"github.com/spf13/cobra"
)

func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "查看已归档项目",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "按保存时间倒序列出项目",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(_ *config.Config, c *di.Container) error {
				archive, err := di.Resolve[*services.ArchiveService](c, di.ServiceArchive)
				if err != nil {
					return err
				}
				projects, err := archive.List(cmd.Context())
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tCREATED\tTITLE\tGENRE\tPROVIDER")
				for _, p := range projects {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						p.ID, p.CreatedAt.UTC().Format("2006-01-02 15:04"), p.Title, p.Genre, p.ProviderID)
				}
				return w.Flush()
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "输出项目完整内容",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(_ *config.Config, c *di.Container) error {
				archive, err := di.Resolve[*services.ArchiveService](c, di.ServiceArchive)
				if err != nil {
					return err
				}
				project, err := archive.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), project)
			})
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func newCharactersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "characters <id>",
		Short: "识别项目剧本中的角色",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(_ *config.Config, c *di.Container) error {
				characters, err := di.Resolve[*services.CharacterService](c, di.ServiceCharacter)
				if err != nil {
					return err
				}
				names, err := characters.Detect(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}
}

func newRenameCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:     "rename <id>",
		Short:   "在项目剧本中重命名角色",
		Example: "  cinegen rename 3f2a... --from JASON --to Marcus",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(_ *config.Config, c *di.Container) error {
				characters, err := di.Resolve[*services.CharacterService](c, di.ServiceCharacter)
				if err != nil {
					return err
				}
				project, err := characters.Rename(cmd.Context(), args[0], from, to)
				if err != nil {
					return err
				}
				if strings.TrimSpace(to) == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "新名字为空，剧本未修改")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "已将 %s 重命名为 %s（项目 %s）\n", strings.ToUpper(from), strings.ToUpper(strings.TrimSpace(to)), project.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "当前角色名（识别出的大写形式）")
	cmd.Flags().StringVar(&to, "to", "", "新角色名")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func newExportCmd() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "分页导出项目",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(_ *config.Config, c *di.Container) error {
				export, err := di.Resolve[*services.ExportService](c, di.ServiceExport)
				if err != nil {
					return err
				}
				doc, err := export.ExportProject(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				content, _, fileName, err := export.Render(doc, format)
				if err != nil {
					return err
				}

				if out == "-" {
					_, err := cmd.OutOrStdout().Write(content)
					return err
				}
				path := out
				if path == "" {
					path = fileName
				} else if info, err := os.Stat(path); err == nil && info.IsDir() {
					path = filepath.Join(path, fileName)
				}
				if err := os.WriteFile(path, content, 0644); err != nil {
					return fmt.Errorf("写入导出文件失败: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "已导出 %d 页到 %s\n", doc.PageCount(), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", services.ExportFormatText, "导出格式: txt 或 json")
	cmd.Flags().StringVarP(&out, "out", "o", "", "输出路径或目录（'-' 为标准输出，默认按标题生成文件名）")
	return cmd
}

func newCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "管理本地保存的 API 密钥",
	}
	set := &cobra.Command{
		Use:     "set <credential> <key>",
		Short:   "加密保存一个 API 密钥（gemini、groq 或 openrouter）",
		Example: "  CREDENTIAL_SECRET=... cinegen credentials set groq gsk_xxx",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("加载配置失败: %w", err)
			}
			if err := cfg.EnsureDirs(); err != nil {
				return err
			}
			store := config.NewCredentialStore(cfg.DataDir, cfg.CredentialSecret)
			if err := store.Set(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已保存 %s 凭证\n", args[0])
			return nil
		},
	}
	cmd.AddCommand(set)
	return cmd
}
