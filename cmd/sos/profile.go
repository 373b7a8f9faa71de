package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/samber/lo"
	flag "github.com/spf13/pflag"

	"github.com/ernie/shoot-or-shield/internal/catalog"
	"github.com/ernie/shoot-or-shield/internal/domain"
	"github.com/ernie/shoot-or-shield/internal/progression"
)

func cmdProfile(args []string) {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	name := fs.String("name", "", "change your callsign")
	character := fs.String("character", "", "select a character class (c1, c2, c3)")
	a := loadApp(fs, args)
	defer a.close()

	ctx := context.Background()
	p := a.player(ctx)
	if *name != "" || *character != "" {
		updated, err := a.profiles.Update(ctx, p.ID, func(p domain.Profile) (domain.Profile, error) {
			p = progression.Rename(p, *name)
			if *character != "" {
				return progression.SelectCharacter(p, *character)
			}
			return p, nil
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		p = updated
	}

	fmt.Printf("%s (%s)\n", p.Name, p.Username)
	fmt.Printf("  Level %d  XP %d/%d  Credits %d\n", p.Level, p.XP, p.MaxXP, p.Credits)
	fmt.Printf("  ELO %d  %s\n", p.Elo, catalog.RankTitle(p.Elo))
	fmt.Printf("  Record %d-%d  Streak %d (best %d)\n", p.MatchesWon, p.MatchesLost, p.WinStreak, p.BestWinStreak)
	fmt.Printf("  Damage dealt %.0f  taken %.0f  Accuracy %.1f%%\n", p.TotalDamageDealt, p.TotalDamageTaken, p.Accuracy*100)
	if ch := catalog.Character(p.CharacterID); ch != nil {
		fmt.Printf("  Character %s (%s): %s\n", ch.Name, ch.Role, ch.Passive.Description)
	}
	fmt.Printf("  Loadout %s / %s / %s\n", itemName(p.Loadout.Gun), itemName(p.Loadout.Shield), itemName(p.Loadout.Armor))

	if len(p.Achievements) > 0 {
		fmt.Println("  Achievements:")
		for _, u := range p.Achievements {
			if ach, ok := catalog.AchievementByID(u.AchievementID); ok {
				fmt.Printf("    [%s] %s - %s\n", ach.Tier, ach.Name, u.UnlockedAt.Format("2006-01-02"))
			}
		}
	}
}

func itemName(id string) string {
	if it := catalog.Item(id); it != nil {
		return it.Name
	}
	return "-"
}

func cmdHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	recent := fs.Int("recent", 10, "number of matches to show")
	a := loadApp(fs, args)
	defer a.close()

	p := a.player(context.Background())
	history := p.MatchHistory
	if len(history) > *recent {
		history = history[:*recent]
	}
	if len(history) == 0 {
		fmt.Println("No matches played yet.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tMODE\tOPPONENT\tRESULT\tELO\tCREDITS\tXP\tACCURACY")
	fmt.Fprintln(w, "----\t----\t--------\t------\t---\t-------\t--\t--------")
	for _, m := range history {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%+d\t%d\t%d\t%.0f%%\n",
			m.Timestamp.Format("2006-01-02 15:04"), m.Mode, m.OpponentName, m.Result,
			m.EloChange, m.CreditsEarned, m.XPEarned, m.Accuracy*100)
	}
	w.Flush()
}

func cmdTasks(args []string) {
	fs := flag.NewFlagSet("tasks", flag.ExitOnError)
	a := loadApp(fs, args)
	defer a.close()

	p := a.player(context.Background())
	printTasks(p.DailyTasks)
}

func printTasks(tasks []domain.DailyTask) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTASK\tPROGRESS\tREWARD\tSTATUS")
	fmt.Fprintln(w, "--\t----\t--------\t------\t------")
	for _, t := range tasks {
		status := "in progress"
		switch {
		case t.Claimed:
			status = "claimed"
		case t.Current >= t.Target:
			status = "ready to claim"
		}
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%d\t%s\n", t.ID, t.Description, t.Current, t.Target, t.Reward, status)
	}
	w.Flush()
}

func cmdClaim(args []string) {
	fs := flag.NewFlagSet("claim", flag.ExitOnError)
	a := loadApp(fs, args)
	defer a.close()

	ctx := context.Background()
	p := a.player(ctx)
	ids := fs.Args()
	if len(ids) == 0 {
		// claim everything that is ready
		ready := lo.Filter(p.DailyTasks, func(t domain.DailyTask, _ int) bool {
			return !t.Claimed && t.Current >= t.Target
		})
		ids = lo.Map(ready, func(t domain.DailyTask, _ int) string { return t.ID })
	}
	if len(ids) == 0 {
		fmt.Println("Nothing to claim.")
		return
	}

	for _, id := range ids {
		updated, err := a.profiles.Update(ctx, p.ID, func(p domain.Profile) (domain.Profile, error) {
			return progression.ClaimTask(p, id)
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error claiming %s: %v\n", id, err)
			continue
		}
		p = updated
		fmt.Printf("Claimed %s. Credits: %d\n", id, p.Credits)
	}
}

func cmdShop(args []string) {
	fs := flag.NewFlagSet("shop", flag.ExitOnError)
	a := loadApp(fs, args)
	defer a.close()

	ctx := context.Background()
	p := a.player(ctx)

	if fs.NArg() >= 2 {
		action, itemID := fs.Arg(0), fs.Arg(1)
		var op func(domain.Profile, string) (domain.Profile, error)
		switch action {
		case "buy":
			op = progression.Purchase
		case "equip":
			op = progression.Equip
		default:
			fmt.Fprintf(os.Stderr, "Unknown shop action: %s\n", action)
			os.Exit(1)
		}
		updated, err := a.profiles.Update(ctx, p.ID, func(p domain.Profile) (domain.Profile, error) {
			return op(p, itemID)
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		p = updated
		log.Printf("Shop: %s %s", action, itemID)
	}

	fmt.Printf("Credits: %d\n\n", p.Credits)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tITEM\tKIND\tTIER\tPRICE\tMATCH\tSTATUS")
	fmt.Fprintln(w, "--\t----\t----\t----\t-----\t-----\t------")
	equipped := []string{p.Loadout.Gun, p.Loadout.Shield, p.Loadout.Armor}
	for _, it := range catalog.All() {
		status := ""
		switch {
		case lo.Contains(equipped, it.ID):
			status = "equipped"
		case p.Owns(it.ID):
			status = "owned"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n", it.ID, it.Name, it.Kind, it.Tier, it.Cost, it.MatchCost, status)
	}
	w.Flush()
}

func cmdLeaderboard(args []string) {
	fs := flag.NewFlagSet("leaderboard", flag.ExitOnError)
	top := fs.Int("top", 10, "number of profiles to show")
	a := loadApp(fs, args)
	defer a.close()

	entries, err := a.profiles.Leaderboard(context.Background(), *top)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tNAME\tLEVEL\tELO\tTITLE\tWINS")
	fmt.Fprintln(w, "----\t----\t-----\t---\t-----\t----")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\t%d\n", e.Rank, e.Name, e.Level, e.Elo, catalog.RankTitle(e.Elo), e.MatchesWon)
	}
	w.Flush()
}

// printResult shows what a finished match did to the profile
func printResult(p domain.Profile, res progression.Result) {
	rule()
	fmt.Println(res.Record.Result)
	fmt.Printf("  ELO %d -> %d (%+d)  %s\n", res.OldElo, res.NewElo, res.NewElo-res.OldElo, res.Title)
	fmt.Printf("  +%d XP  +%d credits\n", res.XPGained, res.CreditsGained)
	if res.LevelsGained > 0 {
		fmt.Printf("  LEVEL UP! Now level %d\n", p.Level)
	}
	for _, ach := range res.NewAchievements {
		fmt.Printf("  Achievement unlocked: %s\n", ach.Name)
	}
}
