package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"sdr-go/internal/app"
	"sdr-go/internal/sdr"
)

// deposit command
var depositCmd = &cobra.Command{
	Use:   "deposit [FILE...]",
	Short: "Upload files, create an object and start accessioning",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCreate(cmd, args, "deposit", true)
	},
}

// register command
var registerCmd = &cobra.Command{
	Use:   "register [FILE...]",
	Short: "Upload files and create an object without accessioning",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCreate(cmd, args, "register", false)
	},
}

func runCreate(cmd *cobra.Command, args []string, operation string, accession bool) error {
	flags := cmd.Flags()
	req := depositRequest(flags, args, accession)
	if req.DocumentPath == "" && req.Object.AdminPolicy == "" {
		return fmt.Errorf("--admin-policy is required unless --document is given")
	}

	a, err := newApp(cmd, operation)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.Deposit(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("%s failed: %w", operation, err)
	}
	return reportResult(result)
}

func depositRequest(flags *pflag.FlagSet, args []string, accession bool) app.DepositRequest {
	str := func(name string) string {
		v, _ := flags.GetString(name)
		return v
	}
	assignDOI, _ := flags.GetBool("assign-doi")
	noPoll, _ := flags.GetBool("no-poll")

	req := app.DepositRequest{
		BaseDir:          str("basepath"),
		Files:            args,
		DocumentPath:     str("document"),
		FileMetadataJSON: str("files-metadata"),
		Grouping:         str("grouping"),
		FileSetType:      str("file-set-type"),
		Object: sdr.ObjectAttributes{
			Label:             str("label"),
			Type:              str("type"),
			View:              str("view"),
			Download:          str("download"),
			Copyright:         str("copyright"),
			UseStatement:      str("use-and-reproduction-statement"),
			Location:          str("access-location"),
			AdminPolicy:       str("admin-policy"),
			Collection:        str("collection"),
			SourceID:          str("source-id"),
			Catkey:            str("catkey"),
			FolioInstanceHRID: str("folio-instance-hrid"),
			ViewingDirection:  str("viewing-direction"),
		},
		Create: sdr.CreateOptions{
			Accession:    accession,
			Priority:     str("priority"),
			AssignDOI:    assignDOI,
			UserVersions: str("user-versions"),
		},
		SkipPolling: noPoll,
	}

	if date := str("embargo-release-date"); date != "" {
		req.Object.Embargo = &sdr.Embargo{
			ReleaseDate: date,
			View:        str("embargo-access"),
			Download:    str("embargo-download"),
		}
	}
	return req
}

// update command
var updateCmd = &cobra.Command{
	Use:   "update DRUID [FILE...]",
	Short: "Open a new version of an object from a document",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		document, _ := flags.GetString("document")
		basepath, _ := flags.GetString("basepath")
		metadata, _ := flags.GetString("files-metadata")
		description, _ := flags.GetString("version-description")
		userVersions, _ := flags.GetString("user-versions")
		noPoll, _ := flags.GetBool("no-poll")

		a, err := newApp(cmd, "update")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Update(cmd.Context(), app.UpdateRequest{
			Druid:            args[0],
			DocumentPath:     document,
			BaseDir:          basepath,
			Files:            args[1:],
			FileMetadataJSON: metadata,
			Options: sdr.UpdateOptions{
				VersionDescription: description,
				UserVersions:       userVersions,
			},
			SkipPolling: noPoll,
		})
		if err != nil {
			return fmt.Errorf("update failed: %w", err)
		}
		return reportResult(result)
	},
}

// wait command
var waitCmd = &cobra.Command{
	Use:   "wait JOB_ID",
	Short: "Wait for a job submitted with --no-poll to finish",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "wait")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Wait(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("wait failed: %w", err)
		}
		return reportResult(result)
	},
}

// get command
var getCmd = &cobra.Command{
	Use:   "get DRUID",
	Short: "Print the document of an object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "get")
		if err != nil {
			return err
		}
		defer a.Close()

		body, err := a.Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get failed: %w", err)
		}
		fmt.Println(string(body))
		return nil
	},
}

// login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store a token",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		proxyTo, _ := cmd.Flags().GetString("proxy-to")

		a, err := newApp(cmd, "login")
		if err != nil {
			return err
		}
		defer a.Close()

		if proxyTo != "" {
			token, err := a.ProxyToken(cmd.Context(), proxyTo)
			if err != nil {
				return fmt.Errorf("proxy login failed: %w", err)
			}
			fmt.Println(token)
			return nil
		}

		if email == "" {
			email = os.Getenv("SDR_EMAIL")
		}
		if email == "" {
			return fmt.Errorf("--email is required")
		}
		password := os.Getenv("SDR_PASSWORD")
		if password == "" {
			if password, err = promptPassword(email); err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
		}

		if err := a.Login(cmd.Context(), email, password); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		fmt.Println("Signed in.")
		return nil
	},
}

// reportResult prints the outcome of a submitted job. A job that finished
// with errors or timed out fails the command.
func reportResult(result *sdr.DepositResult) error {
	fmt.Printf("Job ID: %s\n", result.JobID)
	if result.Status == nil {
		fmt.Println("Not waiting for the job to finish.")
		return nil
	}
	if !result.Status.Succeeded() {
		return fmt.Errorf("job %s failed: %s", result.JobID, result.Status.ErrorSummary())
	}
	fmt.Printf("Druid: %s\n", result.Status.Druid())
	return nil
}

func addObjectFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("label", "", "Object label")
	f.String("type", "object", "Object type (object, book, image, map, media, 3d, document, geo, webarchive-seed)")
	f.String("view", "", "Who can view the object (world, stanford, location-based, citation-only, dark)")
	f.String("download", "", "Who can download files (world, stanford, location-based, none)")
	f.String("access-location", "", "Location for location-based access")
	f.String("copyright", "", "Copyright statement")
	f.String("use-and-reproduction-statement", "", "Use and reproduction statement")
	f.String("admin-policy", "", "Governing admin policy druid")
	f.String("collection", "", "Collection druid the object is a member of")
	f.String("source-id", "", "Source identifier (source:value)")
	f.String("catkey", "", "Symphony catalog key")
	f.String("folio-instance-hrid", "", "Folio instance HRID")
	f.String("viewing-direction", "", "Viewing direction for books (left-to-right, right-to-left)")
	f.String("embargo-release-date", "", "Embargo release date (YYYY-MM-DD)")
	f.String("embargo-access", "", "View access after the embargo is lifted")
	f.String("embargo-download", "", "Download access after the embargo is lifted")
	f.String("document", "", "Use this request document instead of generating one")
	f.String("grouping", "", "Group files into file sets (single, matching_prefix)")
	f.String("file-set-type", "", "File set type (file, image)")
	f.String("priority", "", "Accessioning priority (low, default)")
	f.Bool("assign-doi", false, "Ask the repository to assign a DOI")
	f.String("user-versions", "", "User version handling (none, new, update)")
}

func addFileFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("basepath", ".", "Directory the file paths are relative to")
	f.String("files-metadata", "", "Per-file metadata as a JSON object keyed by relative path")
	f.Bool("no-poll", false, "Return after submitting without waiting for the job")
}

func addDepositCommands() {
	for _, cmd := range []*cobra.Command{depositCmd, registerCmd} {
		addObjectFlags(cmd)
		addFileFlags(cmd)
		rootCmd.AddCommand(cmd)
	}

	addFileFlags(updateCmd)
	updateCmd.Flags().String("document", "", "Document of the new version (must carry the object's externalIdentifier)")
	updateCmd.Flags().String("version-description", "", "Description of the new version")
	updateCmd.Flags().String("user-versions", "", "User version handling (none, new, update)")
	_ = updateCmd.MarkFlagRequired("document")
	rootCmd.AddCommand(updateCmd)

	rootCmd.AddCommand(waitCmd)
	rootCmd.AddCommand(getCmd)

	loginCmd.Flags().String("email", "", "Account email")
	loginCmd.Flags().String("proxy-to", "", "Print a token acting on behalf of this account")
	rootCmd.AddCommand(loginCmd)
}
