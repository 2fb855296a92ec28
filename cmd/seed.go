package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cppla/guildboard/config"
	"github.com/cppla/guildboard/seed"
	"github.com/cppla/guildboard/storage"
)

const (
	usersFlag    = "users"
	postsFlag    = "posts"
	commentsFlag = "comments"
	seedFlag     = "seed"
)

func newSeedCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with demo users, posts and comments",
		Long: `Fill the database with demo data. Every seeded account uses the password
"password123"; the first one may add and change posts.`,
		RunE: seedCommand,
	}
	c.Flags().Int(usersFlag, 5, "Number of users")
	c.Flags().Int(postsFlag, 2, "Posts per user")
	c.Flags().Int(commentsFlag, 3, "Comments per post")
	c.Flags().Int64(seedFlag, 0, "Random seed (0 picks one)")
	return c
}

func seedCommand(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	users, _ := flags.GetInt(usersFlag)
	posts, _ := flags.GetInt(postsFlag)
	comments, _ := flags.GetInt(commentsFlag)
	s, _ := flags.GetInt64(seedFlag)

	cfg, db, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	if err := config.Migrate(db); err != nil {
		return err
	}
	store, err := storage.New(cfg)
	if err != nil {
		return err
	}
	_, err = seed.Run(cmd.Context(), db, store, seed.Options{
		Users:           users,
		PostsPerUser:    posts,
		CommentsPerPost: comments,
		Seed:            s,
	})
	return err
}
