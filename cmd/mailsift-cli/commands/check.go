package commands

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Dynom/TySug/finder"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mailsift/mailsift/cmd/mailsift-cli/iterator"
	"github.com/mailsift/mailsift/cmd/mailsift-cli/workpool"
	"github.com/mailsift/mailsift/hintstore"
	"github.com/mailsift/mailsift/types"
	"github.com/mailsift/mailsift/verifier"
)

var (
	checkSettings = &CheckSettings{}
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify e-mail addresses",
	Long: `Verify one address given as argument, or a stream of addresses piped in as
text or CSV. Results are reported as one JSON object per address.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) > 1 {
			return errors.New("too many arguments, expected 0 or 1")
		}

		if len(args) > 0 && isStdinPiped() {
			return errors.New("can't read both from stdin and argument")
		}

		if len(args) == 0 && !isStdinPiped() {
			return errors.New("missing argument")
		}

		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		logger := logrus.New()
		logger.Out = cmd.ErrOrStderr()
		logger.Level = logrus.WarnLevel
		if checkSettings.Check.Verbose {
			logger.Level = logrus.DebugLevel
		}

		conf, err := NewConfig(checkSettings.ConfigFile)
		if err != nil {
			cmd.PrintErrln(err)
			return
		}

		var dialer = &net.Dialer{}
		if checkSettings.Check.Resolver != nil {
			setCustomResolver(dialer, checkSettings.Check.Resolver)
		}

		var hints hintstore.Store
		if conf.HintStore.DSN != "" {
			db, err := sql.Open("postgres", conf.HintStore.DSN)
			if err != nil {
				cmd.PrintErrln(err)
				return
			}

			defer func() {
				_ = db.Close()
			}()

			hints = hintstore.NewPostgres(db, logger)
		}

		v, err := verifier.New(verifier.Options{
			CheckMX:                   checkSettings.Check.MX,
			Probe:                     checkSettings.Check.Probe,
			SendingEmail:              checkSettings.Check.From,
			DenyDisposable:            checkSettings.Check.DenyDisposable,
			Timeout:                   checkSettings.Check.Timeout,
			AssumeValidOnInconclusive: checkSettings.Check.AssumeValid,
			Dialer:                    dialer,
			Hints:                     hints,
			Logger:                    logger,
		})

		if err != nil {
			cmd.PrintErrln(err)
			return
		}

		var myFinder *finder.Finder
		if checkSettings.Check.Suggest {
			domains := conf.Suggest.Domains
			if len(domains) == 0 {
				domains = defaultSuggestDomains
			}

			myFinder, err = finder.New(
				domains,
				finder.WithLengthTolerance(0.2),
				finder.WithAlgorithm(finder.NewJaroWinklerDefaults()),
			)

			if err != nil {
				cmd.PrintErrln(err)
				return
			}
		}

		it := createIterator(cmd, args)
		if it == nil {
			return
		}

		var outputLock sync.Mutex
		jsonEncoder := json.NewEncoder(cmd.OutOrStdout())

		workers := int(checkSettings.Check.Workers)
		if workers < 1 {
			workers = 1
		}

		// Several SMTP round-trips across several candidates fit well within
		// this multiple of the per-operation timeout
		overallTimeout := 6 * checkSettings.Check.Timeout

		pool := &workpool.Pool{}
		pool.Start(workers, func(tasks <-chan workpool.Task) {
			for task := range tasks {
				ctx, cancel := context.WithTimeout(task.Ctx, overallTimeout)
				result := checkAddress(ctx, v, myFinder, task.Email)
				cancel()

				outputLock.Lock()
				if err := jsonEncoder.Encode(result); err != nil {
					cmd.PrintErrln(err)
				}
				outputLock.Unlock()
			}
		})

		for it.Next() {
			email, err := it.Value()
			if err != nil {
				cmd.PrintErrln(err)
				continue
			}

			email = strings.TrimSpace(email)
			if email == "" {
				continue
			}

			pool.Submit(workpool.Task{Ctx: cmd.Context(), Email: email})
		}

		pool.Wait()

		if err := it.Close(); err != nil {
			cmd.PrintErrln(err)
		}
	},
}

func checkAddress(ctx context.Context, v *verifier.Verifier, myFinder *finder.Finder, email string) CheckResult {
	verdict := v.Verify(ctx, email)

	result := CheckResult{
		Email:  email,
		Valid:  verdict.Valid,
		Reason: string(verdict.Reason),
	}

	if verdict.Valid || myFinder == nil || verdict.Reason != verifier.ReasonNoMX {
		return result
	}

	// The domain doesn't receive mail, propose a close match that does exist
	parts, err := types.NewEmailParts(email)
	if err != nil {
		return result
	}

	alt, score, exact := myFinder.FindCtx(ctx, parts.Domain)
	if !exact && score > finder.WorstScoreValue {
		result.Alternative = types.NewEmailFromParts(parts.Local, alt).Address
	}

	return result
}

func createIterator(cmd *cobra.Command, args []string) *iterator.Iterator {
	if len(args) > 0 {
		return iterator.Lines(strings.NewReader(args[0]))
	}

	if isStdinPiped() {
		switch checkSettings.Format {
		case "", "text":
			return iterator.Lines(os.Stdin)
		case "csv":
			return iterator.CSV(os.Stdin, checkSettings.CSV.skipRows, checkSettings.CSV.column)
		default:
			cmd.PrintErrf("bad format %q", checkSettings.Format)
			return nil
		}
	}

	cmd.PrintErr("No suitable iterator found, this is.. unexpected.")
	return nil
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkSettings.Format, "format", "text", "Input format, \"text\" or \"csv\"")
	checkCmd.Flags().StringVar(&checkSettings.ConfigFile, "config", "", "Optional TOML configuration file")
	checkCmd.Flags().Uint64Var(&checkSettings.CSV.column, "csv-column", 0, "The CSV column holding the address")
	checkCmd.Flags().Uint64Var(&checkSettings.CSV.skipRows, "csv-skip-rows", 0, "Rows to skip, e.g. a header")

	checkCmd.Flags().IPVar(&checkSettings.Check.Resolver, "resolver", nil, "The DNS server to use for lookups")
	checkCmd.Flags().DurationVar(&checkSettings.Check.Timeout, "timeout", 5*time.Second, "Timeout per network operation")
	checkCmd.Flags().BoolVar(&checkSettings.Check.MX, "mx", false, "Require the domain to resolve to a mail relay")
	checkCmd.Flags().BoolVar(&checkSettings.Check.Probe, "probe", false, "Verify mailbox existence over SMTP (implies --mx)")
	checkCmd.Flags().StringVar(&checkSettings.Check.From, "from", "", "Envelope sender for callback verification")
	checkCmd.Flags().BoolVar(&checkSettings.Check.DenyDisposable, "deny-disposable", false, "Reject known disposable domains")
	checkCmd.Flags().BoolVar(&checkSettings.Check.AssumeValid, "assume-valid", false, "Treat an inconclusive probe as valid")
	checkCmd.Flags().UintVar(&checkSettings.Check.Workers, "workers", 1, "Concurrent checks")
	checkCmd.Flags().BoolVar(&checkSettings.Check.Suggest, "suggest", false, "Propose an alternative domain when none resolves")
	checkCmd.Flags().BoolVar(&checkSettings.Check.Verbose, "verbose", false, "Log session details to stderr")
}
