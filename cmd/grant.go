package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/cppla/guildboard/models"
	"github.com/cppla/guildboard/utils"
)

const superuserFlag = "superuser"

func newGrantCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "grant <username> [codename...]",
		Short: "Grant permissions to a user",
		Long: `Grant permissions to an existing user.

Codenames: posts.add_post, posts.change_post. With --superuser the user
holds every permission.

Examples:
  guildboard grant alice posts.add_post posts.change_post
  guildboard grant bob --superuser`,
		Args: cobra.MinimumNArgs(1),
		RunE: grantCommand,
	}
	c.Flags().Bool(superuserFlag, false, "Mark the user as superuser")
	return c
}

func grantCommand(cmd *cobra.Command, args []string) error {
	superuser, err := cmd.Flags().GetBool(superuserFlag)
	if err != nil {
		return err
	}
	if len(args) == 1 && !superuser {
		return errors.New("nothing to grant: pass codenames or --superuser")
	}

	_, db, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	db = db.WithContext(cmd.Context())

	var user models.User
	if err := db.Where("username = ?", args[0]).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user %q not found", args[0])
		}
		return err
	}
	if superuser {
		if err := db.Model(&user).Update("is_superuser", true).Error; err != nil {
			return fmt.Errorf("mark %s superuser: %w", user.Username, err)
		}
	}
	if err := models.Grant(db, &user, args[1:]...); err != nil {
		return err
	}
	utils.Sugar.Infof("granted user=%s superuser=%t permissions=%v", user.Username, superuser, args[1:])
	return nil
}
