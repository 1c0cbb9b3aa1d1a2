// Package ytresolve validates and repairs YouTube references.
//
// It normalizes the many YouTube URL shapes into canonical watch and embed
// URLs, classifies whether a video can actually be embedded, keeps a catalog
// of video and link resources fresh, and repairs broken references by
// searching for embeddable replacements.
//
// # Overview
//
// The library is organized around four stages:
//
//   - youtube: URL normalization and the embeddability classifier (oEmbed
//     metadata probe cross-checked against the Data API status probe)
//   - catalog: the persisted resource catalog and the order-stable batch
//     validator
//   - repair: the repair resolver, replacement search, and the uniform HTTP
//     surface
//   - storage: JSON file persistence for the catalog and the replacement
//     audit log
//
// # Quick Start
//
// Classify a single reference:
//
//	metadata := youtube.NewOEmbedClient(nil)
//	classifier := youtube.NewClassifier(metadata, nil, youtube.ClassifierOptions{})
//	verdict := classifier.Classify(ctx, "https://youtu.be/dQw4w9WgXcQ")
//	if verdict.Embeddable {
//		fmt.Println(verdict.EmbedURL)
//	} else {
//		fmt.Println(verdict.Reason)
//	}
//
// Validate a catalog:
//
//	store, err := storage.NewJSONStore("ytresolve.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	items, err := store.LoadCatalog(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	validator := catalog.NewValidator(classifier, catalog.ValidatorOptions{})
//	store.SaveCatalog(ctx, validator.Validate(ctx, items))
//
// # Configuration
//
// ytresolve loads settings from multiple sources:
//
//  1. Environment variables (highest priority)
//  2. Config file (ytresolve.config.json or ~/.config/ytresolve/ytresolve.config.json)
//  3. Default values (lowest priority)
//
// Environment variables:
//
//   - YTRESOLVE_API_KEY: YouTube Data API key (enables the status probe and
//     replacement search)
//   - YTRESOLVE_ENABLE_REPAIR: Enable the repair endpoints (true/false)
//   - YTRESOLVE_ADMIN_TOKEN: Token required by the repair endpoints
//   - YTRESOLVE_PROBE_TIMEOUT: Per-probe timeout
//   - YTRESOLVE_LINK_TIMEOUT: Link reachability check timeout
//   - YTRESOLVE_STORE_PATH: Path to the JSON store
//   - YTRESOLVE_MAX_RETRIES: Maximum classification retry attempts
//
// # Error Handling
//
// All operations return errors that implement standard Go error handling:
//
//	if errors.Is(err, ytresolve.ErrVideoNotFound) {
//		fmt.Println("video gone")
//	}
//
//	var storErr *ytresolve.StorageError
//	if errors.As(err, &storErr) {
//		fmt.Printf("%s %s failed: %v\n", storErr.Op, storErr.Entity, storErr.Err)
//	}
//
// Note that the catalog validator and the repair resolver never raise errors
// to their callers: their failures are data (Broken flags and reason
// strings), so one bad reference can never abort a batch or a request.
package ytresolve
