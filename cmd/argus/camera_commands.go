package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"argus/internal/api"
	"argus/internal/ipc"
	"argus/internal/store"
)

func newCameraCommand(ctx *commandContext) *cobra.Command {
	cameraCmd := &cobra.Command{
		Use:   "camera",
		Short: "Manage registered cameras",
	}

	cameraCmd.AddCommand(newCameraAddCommand(ctx))
	cameraCmd.AddCommand(newCameraListCommand(ctx))
	cameraCmd.AddCommand(newCameraShowCommand(ctx))
	cameraCmd.AddCommand(newCameraRemoveCommand(ctx))
	cameraCmd.AddCommand(newCameraSetEnabledCommand(ctx, true))
	cameraCmd.AddCommand(newCameraSetEnabledCommand(ctx, false))

	return cameraCmd
}

func newCameraAddCommand(ctx *commandContext) *cobra.Command {
	var streamURL string
	var location string
	var disabled bool
	var retentionDays int

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a camera",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if strings.TrimSpace(streamURL) == "" {
				return fmt.Errorf("--url is required")
			}

			return ctx.withFallback(func(client *ipc.Client, st *store.Store) error {
				var cam api.Camera
				if client != nil {
					resp, err := client.CameraAdd(ipc.CameraAddRequest{
						Name:          name,
						StreamURL:     streamURL,
						Location:      location,
						Disabled:      disabled,
						RetentionDays: retentionDays,
					})
					if err != nil {
						return err
					}
					cam = resp.Camera
				} else {
					stored, err := st.AddCamera(cmd.Context(), &store.Camera{
						Name:          name,
						StreamURL:     streamURL,
						Location:      location,
						Enabled:       !disabled,
						RetentionDays: retentionDays,
					})
					if err != nil {
						return err
					}
					cam = api.FromCamera(stored)
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, api.CameraResponse{Camera: cam})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Camera %q registered (id %s, enabled: %s)\n", cam.Name, cam.ID, yesNo(cam.Enabled))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&streamURL, "url", "u", "", "Camera stream URL (rtsp, http, https, or file)")
	cmd.Flags().StringVarP(&location, "location", "l", "", "Human-readable placement of the camera")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Register the camera without starting capture")
	cmd.Flags().IntVar(&retentionDays, "retention-days", 0, "Per-camera segment retention override")
	return cmd
}

func newCameraListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered cameras",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withFallback(func(client *ipc.Client, st *store.Store) error {
				cameras, err := fetchCameras(cmd, client, st)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, api.CameraListResponse{Cameras: cameras})
				}
				if len(cameras) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No cameras registered")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Name", "Location", "State", "Enabled", "Last Seen"},
					buildCameraRows(cameras),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newCameraShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|name>",
		Short: "Show one camera in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withFallback(func(client *ipc.Client, st *store.Store) error {
				cam, err := resolveCamera(cmd, client, st, args[0])
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, api.CameraResponse{Camera: cam})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID: %s\n", cam.ID)
				fmt.Fprintf(out, "Name: %s\n", cam.Name)
				if cam.Location != "" {
					fmt.Fprintf(out, "Location: %s\n", cam.Location)
				}
				fmt.Fprintf(out, "Stream URL: %s\n", cam.StreamURL)
				fmt.Fprintf(out, "Enabled: %s\n", yesNo(cam.Enabled))
				fmt.Fprintf(out, "State: %s\n", formatStatusLabel(cam.State))
				if cam.StateDetail != "" {
					fmt.Fprintf(out, "State detail: %s\n", cam.StateDetail)
				}
				if cam.RetentionDays > 0 {
					fmt.Fprintf(out, "Retention days: %d\n", cam.RetentionDays)
				}
				if cam.LastSeenAt != "" {
					fmt.Fprintf(out, "Last seen: %s\n", formatDisplayTime(cam.LastSeenAt))
				}
				return nil
			})
		},
	}
}

func newCameraRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id|name>",
		Short: "Remove a camera registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withFallback(func(client *ipc.Client, st *store.Store) error {
				cam, err := resolveCamera(cmd, client, st, args[0])
				if err != nil {
					return err
				}
				removed := false
				if client != nil {
					resp, err := client.CameraRemove(cam.ID)
					if err != nil {
						return err
					}
					removed = resp.Removed
				} else {
					removed, err = st.RemoveCamera(cmd.Context(), cam.ID)
					if err != nil {
						return err
					}
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"removed": removed})
				}
				if removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Camera %q removed\n", cam.Name)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Camera %q was not removed\n", cam.Name)
				}
				return nil
			})
		},
	}
}

func newCameraSetEnabledCommand(ctx *commandContext, enable bool) *cobra.Command {
	use := "disable <id|name>"
	short := "Disable capture for a camera"
	verb := "disabled"
	if enable {
		use = "enable <id|name>"
		short = "Enable capture for a camera"
		verb = "enabled"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withFallback(func(client *ipc.Client, st *store.Store) error {
				cam, err := resolveCamera(cmd, client, st, args[0])
				if err != nil {
					return err
				}
				if client != nil {
					if _, err := client.CameraSetEnabled(cam.ID, enable); err != nil {
						return err
					}
				} else {
					if err := st.SetCameraEnabled(cmd.Context(), cam.ID, enable); err != nil {
						return err
					}
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"id": cam.ID, "enabled": enable})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Camera %q %s\n", cam.Name, verb)
				return nil
			})
		},
	}
}

func fetchCameras(cmd *cobra.Command, client *ipc.Client, st *store.Store) ([]api.Camera, error) {
	if client != nil {
		resp, err := client.CameraList()
		if err != nil {
			return nil, err
		}
		return resp.Cameras, nil
	}
	cameras, err := st.ListCameras(cmd.Context())
	if err != nil {
		return nil, err
	}
	return api.FromCameras(cameras), nil
}

// resolveCamera matches the argument against camera ids, id prefixes, and
// names so operators can use the short ids shown in list output.
func resolveCamera(cmd *cobra.Command, client *ipc.Client, st *store.Store, ref string) (api.Camera, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return api.Camera{}, fmt.Errorf("camera id or name is required")
	}
	cameras, err := fetchCameras(cmd, client, st)
	if err != nil {
		return api.Camera{}, err
	}

	var matches []api.Camera
	for _, cam := range cameras {
		if cam.ID == ref || cam.Name == ref {
			return cam, nil
		}
		if strings.HasPrefix(cam.ID, ref) {
			matches = append(matches, cam)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return api.Camera{}, fmt.Errorf("camera %q not found", ref)
	default:
		return api.Camera{}, fmt.Errorf("camera id %q is ambiguous (%d matches)", ref, len(matches))
	}
}
