// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

// Binary botctl is the operator tool for the community bot: role seeding,
// member administration, broadcasts, roster refreshes, and questionnaire
// exports.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/cheggaaa/pb"
	"github.com/fatih/color"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/primo-rp/communitybot/internal/api"
	"github.com/primo-rp/communitybot/internal/botdb"
	"github.com/primo-rp/communitybot/internal/httpx"
	"github.com/primo-rp/communitybot/pkg/roster"
	"github.com/primo-rp/communitybot/pkg/schema"
	"github.com/spf13/cobra"
	"google.golang.org/api/iterator"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:   "botctl",
	Short: "An operator tool for the community bot",
}

// Config holds defaults normally passed as flags.
type Config struct {
	API     string `toml:"api"`
	Project string `toml:"project"`
}

func loadConfig(path string) (Config, error) {
	var c Config
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return c, nil
		}
		path = home + "/.config/botctl.toml"
		if _, err := os.Stat(path); err != nil {
			return c, nil
		}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(err, "reading config")
	}
	if err := toml.Unmarshal(b, &c); err != nil {
		return c, errors.Wrap(err, "parsing config")
	}
	return c, nil
}

// resolve applies config file defaults to unset flags.
func resolve() (Config, error) {
	c, err := loadConfig(*configPath)
	if err != nil {
		return c, err
	}
	if *apiFlag != "" {
		c.API = *apiFlag
	}
	if *project != "" {
		c.Project = *project
	}
	return c, nil
}

func endpoint(c Config, p string) *url.URL {
	u, err := url.Parse(c.API)
	if err != nil || c.API == "" {
		log.Fatalf("invalid API endpoint %q", c.API)
	}
	return u.JoinPath(p)
}

var client = &httpx.WithUserAgent{BasicClient: http.DefaultClient, UserAgent: "botctl"}

func parseUserID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		log.Fatalf("invalid user ID %q", s)
	}
	return id
}

var initRoles = &cobra.Command{
	Use:   "init-roles -project <ID> <roles.yaml>",
	Short: "Create any missing character roles from a definitions file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := resolve()
		if err != nil {
			log.Fatal(err)
		}
		b, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatal(errors.Wrap(err, "reading definitions"))
		}
		defs, err := roster.ParseDefs(b)
		if err != nil {
			log.Fatal(errors.Wrap(err, "parsing definitions"))
		}
		ctx := cmd.Context()
		store, err := botdb.NewFirestore(ctx, c.Project)
		if err != nil {
			log.Fatal(errors.Wrap(err, "creating store"))
		}
		created, err := store.InitRoles(ctx, defs)
		if err != nil {
			log.Fatal(errors.Wrap(err, "creating roles"))
		}
		fmt.Printf("%s created, %d already present\n", green(created), len(defs)-created)
	},
}

var memberCmd = &cobra.Command{
	Use:   "member promote|demote|ban|unban <user-id>",
	Short: "Change a member's standing",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := resolve()
		if err != nil {
			log.Fatal(err)
		}
		stub := api.Stub[schema.MemberStatusRequest, schema.MemberStatusResponse](client, endpoint(c, "admin/member"))
		resp, err := stub(cmd.Context(), schema.MemberStatusRequest{
			Member: parseUserID(args[1]),
			Action: args[0],
		})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("member %d is now %s\n", resp.Member, green(resp.Status))
	},
}

var roleCmd = &cobra.Command{
	Use:   "role assign <role> <user-id> | role release <role>",
	Short: "Assign or release a character role",
	Args:  cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := resolve()
		if err != nil {
			log.Fatal(err)
		}
		req := schema.RoleRequest{Action: args[0], Role: args[1]}
		if len(args) == 3 {
			req.Member = parseUserID(args[2])
		}
		stub := api.Stub[schema.RoleRequest, schema.RoleResponse](client, endpoint(c, "admin/role"))
		resp, err := stub(cmd.Context(), req)
		if err != nil {
			log.Fatal(err)
		}
		if resp.Occupant != 0 {
			fmt.Printf("%s is held by %d\n", green(resp.Role), resp.Occupant)
		} else {
			fmt.Printf("%s is free\n", green(resp.Role))
		}
	},
}

var rosterCmd = &cobra.Command{
	Use:   "roster [game]",
	Short: "Re-render the pinned roster messages",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := resolve()
		if err != nil {
			log.Fatal(err)
		}
		var req schema.RosterUpdateRequest
		if len(args) == 1 {
			req.Game = args[0]
		}
		stub := api.Stub[schema.RosterUpdateRequest, schema.RosterUpdateResponse](client, endpoint(c, "admin/roster"))
		resp, err := stub(cmd.Context(), req)
		if err != nil {
			log.Fatal(err)
		}
		if len(resp.Updated) == 0 {
			fmt.Println("all rosters up to date")
			return
		}
		fmt.Printf("updated: %s\n", green(strings.Join(resp.Updated, ", ")))
	},
}

var rosterPost = &cobra.Command{
	Use:   "roster-post -project <ID> <game> <chat-id> <message-id> <text-file>",
	Short: "Register an existing pinned message as the roster for a game",
	Long: `Register an existing pinned message as the roster for a game.

The message must already be posted and pinned in the chat; roster-post records
its location and unmarked text so role changes can re-render it in place.`,
	Args: cobra.ExactArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := resolve()
		if err != nil {
			log.Fatal(err)
		}
		game := roster.Game(args[0])
		if game != roster.GameGenshin && game != roster.GameHSR {
			log.Fatalf("unknown game %q", args[0])
		}
		chat, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			log.Fatalf("invalid chat ID %q", args[1])
		}
		msgID, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			log.Fatalf("invalid message ID %q", args[2])
		}
		b, err := os.ReadFile(args[3])
		if err != nil {
			log.Fatal(errors.Wrap(err, "reading roster text"))
		}
		ctx := cmd.Context()
		store, err := botdb.NewFirestore(ctx, c.Project)
		if err != nil {
			log.Fatal(errors.Wrap(err, "creating store"))
		}
		if err := store.SaveRoster(ctx, schema.RosterMessage{
			Game:      game,
			Chat:      chat,
			MessageID: msgID,
			Text:      string(b),
		}); err != nil {
			log.Fatal(errors.Wrap(err, "saving roster"))
		}
		fmt.Printf("%s roster registered at %d/%d\n", green(game), chat, msgID)
	},
}

var broadcastCmd = &cobra.Command{
	Use:   "broadcast [-include-admins] <message-file>",
	Short: "Fan a message out to all active members",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := resolve()
		if err != nil {
			log.Fatal(err)
		}
		b, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatal(errors.Wrap(err, "reading message"))
		}
		text := strings.TrimSpace(string(b))
		if text == "" {
			log.Fatal("message file is empty")
		}
		stub := api.Stub[schema.BroadcastRequest, schema.BroadcastResponse](client, endpoint(c, "admin/broadcast"))
		resp, err := stub(cmd.Context(), schema.BroadcastRequest{
			Text:          text,
			IncludeAdmins: *includeAdmins,
		})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%s deliveries enqueued\n", green(resp.Enqueued))
	},
}

var exportCmd = &cobra.Command{
	Use:   "export -project <ID> gs://<bucket>/<prefix>",
	Short: "Export all questionnaires to a GCS prefix as JSON",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := resolve()
		if err != nil {
			log.Fatal(err)
		}
		bucket, prefix, err := parseGCSPath(args[0])
		if err != nil {
			log.Fatal(err)
		}
		ctx := cmd.Context()
		fs, err := firestore.NewClient(ctx, c.Project)
		if err != nil {
			log.Fatal(errors.Wrap(err, "creating firestore client"))
		}
		gcs, err := storage.NewClient(ctx)
		if err != nil {
			log.Fatal(errors.Wrap(err, "creating storage client"))
		}
		docs, err := fs.Collection("questionnaires").Documents(ctx).GetAll()
		if err != nil {
			log.Fatal(errors.Wrap(err, "listing questionnaires"))
		}
		bar := pb.StartNew(len(docs))
		var exported, failed int
		for _, doc := range docs {
			if err := exportDoc(ctx, gcs, bucket, prefix, doc); err != nil {
				log.Println(errors.Wrapf(err, "exporting %s", doc.Ref.ID))
				failed++
			} else {
				exported++
			}
			bar.Increment()
		}
		bar.Finish()
		fmt.Printf("%s exported", green(exported))
		if failed > 0 {
			fmt.Printf(", %s failed", yellow(failed))
		}
		fmt.Println()
	},
}

func parseGCSPath(s string) (bucket, prefix string, err error) {
	u, err := url.Parse(s)
	if err != nil || u.Scheme != "gs" || u.Host == "" {
		return "", "", errors.Errorf("expected gs://<bucket>/<prefix>, got %q", s)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

func exportDoc(ctx context.Context, gcs *storage.Client, bucket, prefix string, doc *firestore.DocumentSnapshot) error {
	var q schema.Questionnaire
	if err := doc.DataTo(&q); err != nil {
		return errors.Wrap(err, "decoding questionnaire")
	}
	w := gcs.Bucket(bucket).Object(path.Join(prefix, doc.Ref.ID+".json")).NewWriter(ctx)
	if err := json.NewEncoder(w).Encode(q); err != nil {
		w.Close()
		return errors.Wrap(err, "encoding questionnaire")
	}
	return errors.Wrap(w.Close(), "writing object")
}

var listExports = &cobra.Command{
	Use:   "list-exports gs://<bucket>/<prefix>",
	Short: "List previously exported questionnaires",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		bucket, prefix, err := parseGCSPath(args[0])
		if err != nil {
			log.Fatal(err)
		}
		ctx := cmd.Context()
		gcs, err := storage.NewClient(ctx)
		if err != nil {
			log.Fatal(errors.Wrap(err, "creating storage client"))
		}
		it := gcs.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
		var count int
		for {
			attrs, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				log.Fatal(errors.Wrap(err, "listing objects"))
			}
			fmt.Printf("%s\t%d bytes\t%s\n", attrs.Name, attrs.Size, attrs.Updated.Format("2006-01-02 15:04"))
			count++
		}
		fmt.Printf("%s objects\n", green(count))
	},
}

var (
	// Shared
	apiFlag    = flag.String("api", "", "bot admin API endpoint URI")
	project    = flag.String("project", "", "GCP project ID for Firestore")
	configPath = flag.String("config", "", "path to a botctl.toml config file")
	// broadcast
	includeAdmins = flag.Bool("include-admins", false, "deliver the broadcast to admins too")
)

func init() {
	initRoles.Flags().AddGoFlag(flag.Lookup("project"))
	initRoles.Flags().AddGoFlag(flag.Lookup("config"))

	memberCmd.Flags().AddGoFlag(flag.Lookup("api"))
	memberCmd.Flags().AddGoFlag(flag.Lookup("config"))

	roleCmd.Flags().AddGoFlag(flag.Lookup("api"))
	roleCmd.Flags().AddGoFlag(flag.Lookup("config"))

	rosterCmd.Flags().AddGoFlag(flag.Lookup("api"))
	rosterCmd.Flags().AddGoFlag(flag.Lookup("config"))

	rosterPost.Flags().AddGoFlag(flag.Lookup("project"))
	rosterPost.Flags().AddGoFlag(flag.Lookup("config"))

	broadcastCmd.Flags().AddGoFlag(flag.Lookup("api"))
	broadcastCmd.Flags().AddGoFlag(flag.Lookup("config"))
	broadcastCmd.Flags().AddGoFlag(flag.Lookup("include-admins"))

	exportCmd.Flags().AddGoFlag(flag.Lookup("project"))
	exportCmd.Flags().AddGoFlag(flag.Lookup("config"))

	rootCmd.AddCommand(initRoles)
	rootCmd.AddCommand(memberCmd)
	rootCmd.AddCommand(roleCmd)
	rootCmd.AddCommand(rosterCmd)
	rootCmd.AddCommand(rosterPost)
	rootCmd.AddCommand(broadcastCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(listExports)
}

func main() {
	flag.Parse()
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
