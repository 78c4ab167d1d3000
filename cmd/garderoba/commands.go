package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/erazemk/garderoba/internal/model"
)

var (
	stdout io.Writer = os.Stdout
	stdin  io.Reader = os.Stdin
)

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.cmdLogin(ctx, args)
	case "logout":
		return a.session.SignOut(ctx)
	case "whoami":
		return a.cmdWhoami(ctx)
	case "items":
		return a.cmdItems(ctx, args)
	case "outfits":
		return a.cmdOutfits(ctx, args)
	case "suggest":
		return a.cmdSuggest(ctx, args)
	case "thumb":
		return a.cmdThumb(ctx, args)
	case "watch":
		return a.cmdWatch(ctx, args)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func newFlagSet(name, help string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() { fmt.Fprint(stdout, help) }
	return fs
}

// parse parses args and prints the usage text on -h or a bad flag.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fs.Usage()
		}
		return err
	}
	return nil
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := newFlagSet("login", `Usage: garderoba login -e <email>

The password is read from $GARDEROBA_PASSWORD or the first line of stdin.
`)
	var email string
	fs.StringVar(&email, "email", "", "")
	fs.StringVar(&email, "e", "", "")
	if err := parse(fs, args); err != nil {
		return err
	}

	password := os.Getenv("GARDEROBA_PASSWORD")
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	profile, err := a.session.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Signed in as %s\n", profile.Email)
	return nil
}

func (a *app) cmdWhoami(ctx context.Context) error {
	profile, err := a.session.Profile(ctx)
	if err != nil {
		return err
	}
	if profile == nil {
		fmt.Fprintln(stdout, "Not signed in.")
		return nil
	}
	if _, err := a.session.Token(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s (%s)\n", profile.Email, profile.UserID)
	return nil
}

func (a *app) cmdItems(ctx context.Context, args []string) error {
	sub, rest := "list", args
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		sub, rest = args[0], args[1:]
	}

	switch sub {
	case "list":
		fs := newFlagSet("items list", "Usage: garderoba items list [-t <type>] [-f]\n")
		var itemType string
		var favorites bool
		fs.StringVar(&itemType, "type", "", "")
		fs.StringVar(&itemType, "t", "", "")
		fs.BoolVar(&favorites, "favorites", false, "")
		fs.BoolVar(&favorites, "f", false, "")
		if err := parse(fs, rest); err != nil {
			return err
		}

		if err := a.wardrobe.Load(ctx); err != nil {
			a.warnStale(err, len(a.wardrobe.Items()))
			if len(a.wardrobe.Items()) == 0 {
				return err
			}
		}
		items := a.wardrobe.Items()
		if itemType != "" {
			items = a.wardrobe.ByType(itemType)
		}
		if favorites {
			var favs []model.Item
			for _, it := range items {
				if it.Favorite {
					favs = append(favs, it)
				}
			}
			items = favs
		}
		printItems(items)
		return nil

	case "add":
		fs := newFlagSet("items add", `Usage: garderoba items add -t <type> -s <sub-type> [attributes]

Attributes: -color -material -formality -pattern -fit -weather -occasion -image
`)
		var it model.Item
		fs.StringVar(&it.ItemType, "type", "", "")
		fs.StringVar(&it.ItemType, "t", "", "")
		fs.StringVar(&it.SubType, "sub", "", "")
		fs.StringVar(&it.SubType, "s", "", "")
		fs.StringVar(&it.Color, "color", "", "")
		fs.StringVar(&it.Material, "material", "", "")
		fs.StringVar(&it.Formality, "formality", "", "")
		fs.StringVar(&it.Pattern, "pattern", "", "")
		fs.StringVar(&it.Fit, "fit", "", "")
		fs.StringVar(&it.SuitableForWeather, "weather", "", "")
		fs.StringVar(&it.SuitableForOccasion, "occasion", "", "")
		fs.StringVar(&it.ImageLink, "image", "", "")
		if err := parse(fs, rest); err != nil {
			return err
		}

		created, err := a.wardrobe.Add(ctx, it)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Added %s %s (%s)\n", created.ItemType, created.SubType, created.ID)
		return nil

	case "delete":
		fs := newFlagSet("items delete", `Usage: garderoba items delete [-y] [-c] <item-id>

  -c, -cascade   also delete outfits that contain the item
  -y, -yes       do not ask for confirmation
`)
		var cascade, yes bool
		fs.BoolVar(&cascade, "cascade", false, "")
		fs.BoolVar(&cascade, "c", false, "")
		fs.BoolVar(&yes, "yes", false, "")
		fs.BoolVar(&yes, "y", false, "")
		if err := parse(fs, rest); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			fs.Usage()
			return flag.ErrHelp
		}
		id := fs.Arg(0)

		if err := a.loadBoth(ctx); err != nil {
			return err
		}

		n, err := a.wardrobe.OutfitCount(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 && !yes {
			action := "will reference a missing item"
			if cascade {
				action = "will be deleted too"
			}
			ok, err := confirm(fmt.Sprintf("Item is used in %d outfit(s) that %s. Continue?", n, action))
			if err != nil || !ok {
				return err
			}
		}

		if err := a.wardrobe.Delete(ctx, id, cascade); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Deleted item %s\n", id)
		return nil

	case "fav":
		if len(rest) != 1 {
			return errors.New("usage: garderoba items fav <item-id>")
		}
		if err := a.wardrobe.Load(ctx); err != nil {
			return err
		}
		it, err := a.wardrobe.ToggleFavorite(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s %s favorite: %t\n", it.SubType, it.ID, it.Favorite)
		return nil

	case "refresh":
		if err := a.wardrobe.Fetch(ctx); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Fetched %d items\n", len(a.wardrobe.Items()))
		return nil

	default:
		return fmt.Errorf("unknown items command: %s", sub)
	}
}

func (a *app) cmdOutfits(ctx context.Context, args []string) error {
	sub, rest := "list", args
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		sub, rest = args[0], args[1:]
	}

	switch sub {
	case "list":
		fs := newFlagSet("outfits list", "Usage: garderoba outfits list [-o <occasion>]\n")
		var occasion string
		fs.StringVar(&occasion, "occasion", "", "")
		fs.StringVar(&occasion, "o", "", "")
		if err := parse(fs, rest); err != nil {
			return err
		}

		if err := a.outfits.Load(ctx); err != nil {
			a.warnStale(err, len(a.outfits.Outfits()))
			if len(a.outfits.Outfits()) == 0 {
				return err
			}
		}
		list := a.outfits.Outfits()
		if occasion != "" {
			list = a.outfits.ByOccasion(occasion)
		}
		printOutfits(list)
		return nil

	case "add":
		fs := newFlagSet("outfits add", "Usage: garderoba outfits add -o <occasion> <item-id>...\n")
		var occasion string
		fs.StringVar(&occasion, "occasion", "", "")
		fs.StringVar(&occasion, "o", "", "")
		if err := parse(fs, rest); err != nil {
			return err
		}

		if err := a.loadBoth(ctx); err != nil {
			return err
		}
		o := model.Outfit{Occasion: occasion}
		for _, id := range fs.Args() {
			ref := model.OutfitItem{ItemID: id}
			if it, ok := a.wardrobe.ByID(id); ok {
				ref.Type = it.ItemType
			} else {
				a.logger.Warn("outfit references an item that is not in the wardrobe", "item_id", id)
			}
			o.Items = append(o.Items, ref)
		}

		created, err := a.outfits.Add(ctx, o)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Added %s outfit (%s)\n", created.Occasion, created.ID)
		return nil

	case "delete":
		if len(rest) != 1 {
			return errors.New("usage: garderoba outfits delete <outfit-id>")
		}
		if err := a.outfits.Load(ctx); err != nil {
			return err
		}
		if err := a.outfits.Delete(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Deleted outfit %s\n", rest[0])
		return nil

	case "fav":
		if len(rest) != 1 {
			return errors.New("usage: garderoba outfits fav <outfit-id>")
		}
		if err := a.outfits.Load(ctx); err != nil {
			return err
		}
		o, err := a.outfits.ToggleFavorite(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Outfit %s favorite: %t\n", o.ID, o.Favorite)
		return nil

	case "check":
		if err := a.loadBoth(ctx); err != nil {
			return err
		}
		refs := a.outfits.Dangling(func(id string) bool {
			_, ok := a.wardrobe.ByID(id)
			return ok
		})
		if len(refs) == 0 {
			fmt.Fprintln(stdout, "All outfits reference existing items.")
			return nil
		}
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "OUTFIT\tMISSING ITEM")
		for _, r := range refs {
			fmt.Fprintf(tw, "%s\t%s\n", r.OutfitID, r.ItemID)
		}
		return tw.Flush()

	default:
		return fmt.Errorf("unknown outfits command: %s", sub)
	}
}

func (a *app) cmdSuggest(ctx context.Context, args []string) error {
	fs := newFlagSet("suggest", "Usage: garderoba suggest -o <occasion> [-s]\n\n  -s, -save   save the suggestion as an outfit\n")
	var occasion string
	var save bool
	fs.StringVar(&occasion, "occasion", "", "")
	fs.StringVar(&occasion, "o", "", "")
	fs.BoolVar(&save, "save", false, "")
	fs.BoolVar(&save, "s", false, "")
	if err := parse(fs, args); err != nil {
		return err
	}

	if err := a.wardrobe.Load(ctx); err != nil {
		return err
	}
	sug, err := a.suggest.Generate(ctx, occasion)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s, %.0f°C %s\n", sug.Weather.Location, sug.Weather.Temperature, sug.Weather.Condition)
	fmt.Fprintf(stdout, "%s\n\n", sug.Outfit.Description)
	printItems(sug.Items)
	for _, id := range sug.Unresolved {
		fmt.Fprintf(stdout, "  (unknown item %s)\n", id)
	}

	if !save {
		return nil
	}
	if err := a.outfits.Load(ctx); err != nil {
		return err
	}
	saved, err := a.suggest.Save(ctx, sug)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\nSaved as outfit %s\n", saved.ID)
	return nil
}

func (a *app) cmdThumb(ctx context.Context, args []string) error {
	fs := newFlagSet("thumb", "Usage: garderoba thumb [-o <file>] <item-id>\n")
	var out string
	fs.StringVar(&out, "out", "", "")
	fs.StringVar(&out, "o", "", "")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return flag.ErrHelp
	}

	if err := a.wardrobe.Load(ctx); err != nil {
		return err
	}
	it, ok := a.wardrobe.ByID(fs.Arg(0))
	if !ok {
		return fmt.Errorf("unknown item %s", fs.Arg(0))
	}

	th, err := a.thumbs.Get(ctx, it)
	if err != nil {
		return err
	}
	if out == "" {
		out = it.ID + ".jpg"
	}
	if err := os.WriteFile(out, th.Data, 0o644); err != nil {
		return fmt.Errorf("writing thumbnail: %w", err)
	}
	fmt.Fprintf(stdout, "Wrote %s (%d bytes)\n", out, len(th.Data))
	return nil
}

func (a *app) loadBoth(ctx context.Context) error {
	if err := a.wardrobe.Load(ctx); err != nil {
		return err
	}
	return a.outfits.Load(ctx)
}

// warnStale tells the user that cached data is being shown after a failed refresh.
func (a *app) warnStale(err error, cached int) {
	if cached > 0 {
		a.logger.Warn("showing cached data, refresh failed", "error", err)
	}
}

func confirm(prompt string) (bool, error) {
	fmt.Fprintf(stdout, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	fmt.Fprintln(stdout, "Aborted.")
	return false, nil
}

func printItems(items []model.Item) {
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSUB-TYPE\tCOLOR\tFAV")
	for _, it := range items {
		fav := ""
		if it.Favorite {
			fav = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.ItemType, it.SubType, it.Color, fav)
	}
	tw.Flush()
}

func printOutfits(list []model.Outfit) {
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOCCASION\tITEMS\tFAV")
	for _, o := range list {
		ids := make([]string, len(o.Items))
		for i, it := range o.Items {
			ids[i] = it.ItemID
		}
		fav := ""
		if o.Favorite {
			fav = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.ID, o.Occasion, strings.Join(ids, ","), fav)
	}
	tw.Flush()
}
