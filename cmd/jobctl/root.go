package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"boardgen/internal/imagejob"
	"boardgen/internal/infra"
	"boardgen/internal/storage"
	"boardgen/pkg/zip"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:           "jobctl",
		Short:         "Submit, poll and download signed image jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			if cfgFile := v.GetString("config"); cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config: %w", err)
				}
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "config file (yaml)")
	flags.String("host", "https://api.liblbai.cloud", "API host")
	flags.String("access-key", "", "access key (env LIBLIB_ACCESS_KEY)")
	flags.String("secret-key", "", "secret key (env LIBLIB_SECRET_KEY)")
	flags.String("t2i-template", "", "text2img template uuid")
	flags.String("i2i-template", "", "img2img template uuid")
	flags.Duration("interval", imagejob.DefaultPollInterval, "poll interval")
	flags.Duration("timeout", imagejob.DefaultTimeout, "poll budget after submission")
	flags.Bool("verbose", false, "log requests")

	for key, flag := range map[string]string{
		"config":       "config",
		"host":         "host",
		"access_key":   "access-key",
		"secret_key":   "secret-key",
		"t2i_template": "t2i-template",
		"i2i_template": "i2i-template",
		"interval":     "interval",
		"timeout":      "timeout",
		"verbose":      "verbose",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	v.SetEnvPrefix("LIBLIB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("host", "LIBLIB_API_HOST")
	_ = v.BindEnv("t2i_template", "LIBLIB_T2I_TEMPLATE_UUID")
	_ = v.BindEnv("i2i_template", "LIBLIB_I2I_TEMPLATE_UUID")

	root.AddCommand(
		newSignCmd(v),
		newSubmitCmd(v),
		newStatusCmd(v),
		newGenerateCmd(v),
	)
	return root
}

func clientFrom(v *viper.Viper) *imagejob.Client {
	opts := imagejob.Options{
		Host:              v.GetString("host"),
		AccessKey:         v.GetString("access_key"),
		SecretKey:         v.GetString("secret_key"),
		TextTemplateUUID:  v.GetString("t2i_template"),
		ImageTemplateUUID: v.GetString("i2i_template"),
		PollInterval:      v.GetDuration("interval"),
		Timeout:           v.GetDuration("timeout"),
	}
	if v.GetBool("verbose") {
		logger := infra.NewLogger("cli").With().Str("cmd", "jobctl").Logger()
		opts.Logger = &logger
	}
	return imagejob.NewClient(opts)
}

func requestFlags(cmd *cobra.Command) {
	cmd.Flags().String("mode", string(imagejob.ModeText2Img), "text2img or img2img")
	cmd.Flags().String("image", "", "source image URL for img2img")
	cmd.Flags().String("aspect", "", "aspect ratio, e.g. 1:1")
	cmd.Flags().Int("count", 0, "number of images")
	cmd.Flags().String("parent", "", "parent generateUuid to chain onto")
}

func requestFrom(cmd *cobra.Command, prompt string) (imagejob.Request, error) {
	rawMode, _ := cmd.Flags().GetString("mode")
	mode, ok := imagejob.ParseMode(rawMode)
	if !ok {
		return imagejob.Request{}, fmt.Errorf("unsupported mode %q", rawMode)
	}
	req := imagejob.Request{Mode: mode, Prompt: prompt}
	req.SourceImage, _ = cmd.Flags().GetString("image")
	req.AspectRatio, _ = cmd.Flags().GetString("aspect")
	req.ImageCount, _ = cmd.Flags().GetInt("count")
	req.ParentJobID, _ = cmd.Flags().GetString("parent")
	return req, req.Validate()
}

func newSignCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "sign PATH",
		Short: "Print the signed query parameters for PATH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := v.GetString("secret_key")
			if secret == "" {
				return fmt.Errorf("secret key is required")
			}
			params := imagejob.NewSignedParams(args[0], secret, time.Now(), imagejob.NewNonce())
			fmt.Fprintln(cmd.OutOrStdout(), params.Query(v.GetString("access_key")).Encode())
			return nil
		},
	}
}

func newSubmitCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit PROMPT",
		Short: "Create a job and print its generateUuid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := requestFrom(cmd, args[0])
			if err != nil {
				return err
			}
			id, err := clientFrom(v).Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	requestFlags(cmd)
	return cmd
}

func newStatusCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status GENERATE_UUID",
		Short: "Poll a job once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := clientFrom(v).Poll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), job)
		},
	}
}

func newGenerateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate PROMPT",
		Short: "Submit a job and wait for its images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := requestFrom(cmd, args[0])
			if err != nil {
				return err
			}
			job, err := clientFrom(v).GenerateAndWait(cmd.Context(), req, 0, 0)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("zip")
			if out == "" {
				return printJSON(cmd.OutOrStdout(), job)
			}
			if err := writeArchive(cmd.Context(), out, job); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d images written to %s\n", job.ID, len(job.Images), out)
			return nil
		},
	}
	requestFlags(cmd)
	cmd.Flags().String("zip", "", "download the images into this zip file")
	return cmd
}

func writeArchive(ctx context.Context, path string, job imagejob.Job) error {
	loader := storage.NewLoader(nil)
	assets := make([]zip.Asset, 0, len(job.Images))
	for i, u := range job.Images {
		data, ct, err := loader.Load(ctx, u)
		if err != nil {
			return fmt.Errorf("download image %d: %w", i+1, err)
		}
		assets = append(assets, zip.Asset{Filename: zip.Filename(job.ID, i, ct), MIME: ct, Data: data})
	}
	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		return err
	}
	return os.WriteFile(path, archive, 0o644)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
