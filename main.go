package main

import (
	"fmt"
	"log"

	"github.com/ebfe/scard"

	"github.com/cardforge/aram/pkg/aram"
	"github.com/cardforge/aram/pkg/script"
	"github.com/cardforge/aram/pkg/seac"
	"github.com/cardforge/aram/pkg/tlv"
)

func main() {
	// --- 1. Hardware Setup ---
	ctx, card := connectToCard()

	defer func() {
		if err := ctx.Release(); err != nil {
			log.Printf("Warning: Failed to release context: %v", err)
		}
	}()

	defer func() {
		if err := card.Disconnect(scard.LeaveCard); err != nil {
			log.Printf("Warning: Failed to disconnect card: %v", err)
		}
	}()

	// --- 2. Logic Setup ---
	client := aram.NewClient(card)

	// --- 3. Execution Flow ---

	// Step 1: Select the ARA-M applet and ask its interface version
	step1SelectARAM(client)

	// Step 2: Replace the applet's rule store with the demo rules
	store := step2StoreRules(client)

	// Step 3: Export, clear, replay and verify the store
	step3RoundTrip(client, store)

	fmt.Println("\n>> Demo Finished Successfully")
}

// =========================================================================
// Helper Functions
// =========================================================================

// connectToCard handles the PC/SC context establishment and reader connection.
func connectToCard() (*scard.Context, *scard.Card) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		log.Fatalf("Error establishing context: %s", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		if relErr := ctx.Release(); relErr != nil {
			log.Printf("Warning: Failed to release context during error handling: %v", relErr)
		}
		log.Fatal("No smart card reader found.")
	}

	fmt.Printf(">> Using reader: %s\n", readers[0])

	card, err := ctx.Connect(readers[0], scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		if relErr := ctx.Release(); relErr != nil {
			log.Printf("Warning: Failed to release context during error handling: %v", relErr)
		}
		log.Fatalf("Error connecting to card: %s", err)
	}

	return ctx, card
}

// step1SelectARAM selects the ARA-M applet and exchanges interface versions.
func step1SelectARAM(client *aram.Client) {
	fmt.Println("\n=============================================")
	fmt.Println(" Step 1: SELECT ARA-M")
	fmt.Println("=============================================")

	fci, err := client.Select(aram.Label)
	if err != nil {
		log.Fatalf("Selecting ARA-M failed: %v", err)
	}
	fmt.Printf(">> Selected %s (AID %X)\n", aram.Label, aram.AID)
	if fci != nil {
		fmt.Println(fci.Describe())
	}

	version, err := client.GetConfig(aram.InterfaceVersion{Major: 1, Minor: 1, Patch: 0})
	if err != nil {
		// Not every ARA-M implements GET DATA [Config].
		log.Printf("Step 1 Warning: config exchange failed: %v", err)
		return
	}
	fmt.Printf(">> Applet interface version: %s\n", version)
}

// step2StoreRules clears the applet and pushes the demo rule set.
func step2StoreRules(client *aram.Client) *seac.Store {
	fmt.Println("\n=============================================")
	fmt.Println(" Step 2: STORE DEMO RULES")
	fmt.Println("=============================================")

	store := demoStore()

	if err := client.DeleteAllRules(); err != nil {
		log.Fatalf("Clearing applet rules failed: %v", err)
	}
	if err := client.StoreRules(store); err != nil {
		log.Fatalf("Storing rules failed: %v", err)
	}

	for i, rule := range store.Rules() {
		fmt.Printf("   [+] Stored rule %d: %s\n", i+1, rule)
	}

	return store
}

// step3RoundTrip exports the store to script text, clears it, replays the
// script and verifies the canonical binary matches, then cross-checks the
// result against the applet's own view.
func step3RoundTrip(client *aram.Client, store *seac.Store) {
	fmt.Println("\n=============================================")
	fmt.Println(" Step 3: EXPORT / REPLAY ROUND TRIP")
	fmt.Println("=============================================")

	rt := script.NewRoundTrip(aram.Label)
	if err := rt.Run(store); err != nil {
		log.Fatalf("Round trip failed in state %s: %v", rt.State(), err)
	}

	fmt.Println(">> Exported script:")
	fmt.Print(rt.Script())
	fmt.Printf(">> Round trip verified: %d canonical bytes reproduced\n", len(rt.Baseline()))

	onCard, err := client.ReadAllData()
	if err != nil {
		log.Fatalf("Reading back applet rules failed: %v", err)
	}

	local, err := seac.MarshalStore(store)
	if err != nil {
		log.Fatalf("Serializing local store failed: %v", err)
	}

	if fmt.Sprintf("%X", onCard) != fmt.Sprintf("%X", local) {
		log.Fatalf("Applet store diverges from local store:\ncard:  %X\nlocal: %X", onCard, local)
	}
	fmt.Println(">> Applet store matches the local store")

	// Cross-check the alternative STORE DATA read-back flow where the
	// applet supports it.
	viaStore, err := client.ReadAllViaStoreData()
	if err != nil {
		log.Printf("Step 3 Note: STORE DATA read-back unavailable: %v", err)
		return
	}
	if fmt.Sprintf("%X", viaStore) != fmt.Sprintf("%X", onCard) {
		log.Fatalf("STORE DATA read-back diverges from GET DATA:\nstore data: %X\nget data:   %X", viaStore, onCard)
	}
	fmt.Println(">> STORE DATA read-back matches")
}

// demoStore builds the four-rule demonstration store.
func demoStore() *seac.Store {
	store := seac.NewStore()

	hashA := tlv.Hex("aa682fd19d60c3cb75f19e5c4d7b55c0f63bc799")
	hashB := tlv.Hex("a1234567f79d94f9e2b4cf5d2ab9c27e112fe842")
	perms := mustPermissions(tlv.Hex("0000000000000004"))

	insert(store, seac.Rule{
		AID:         mustAID(tlv.Hex("ffffffffffaa")),
		DeviceAppID: mustDeviceAppID(hashA),
		APDU:        seac.APDUNever,
		NFC:         seac.Never,
		Permissions: &perms,
	})
	insert(store, seac.Rule{
		AID:         mustAID(tlv.Hex("ffffffffffbb")),
		DeviceAppID: mustDeviceAppID(hashA),
		PackageName: "com.example.wallet",
		APDU:        seac.APDUAlways,
		NFC:         seac.Always,
		Permissions: &perms,
	})
	insert(store, seac.Rule{
		AID:         mustAID(tlv.Hex("ffffffffffcc")),
		DeviceAppID: mustDeviceAppID(hashB),
		APDU:        mustFiltered(tlv.Hex("aabbccdd01020304")),
		NFC:         seac.Always,
		Permissions: &perms,
	})
	insert(store, seac.Rule{
		AID:         seac.WildcardAID,
		DeviceAppID: mustDeviceAppID(hashB),
		APDU:        mustFiltered(tlv.Hex("aabbccdd010203041122334405060708")),
		NFC:         seac.Never,
		Permissions: &perms,
	})

	return store
}

func insert(store *seac.Store, rule seac.Rule) {
	if err := store.InsertOrReplace(rule); err != nil {
		log.Fatalf("Building demo store failed: %v", err)
	}
}

func mustAID(b []byte) seac.AIDRef {
	aid, err := seac.AIDRefFrom(b)
	if err != nil {
		log.Fatalf("Invalid demo AID: %v", err)
	}
	return aid
}

func mustDeviceAppID(b []byte) seac.DeviceAppID {
	dev, err := seac.DeviceAppIDFrom(b)
	if err != nil {
		log.Fatalf("Invalid demo device application identifier: %v", err)
	}
	return dev
}

func mustFiltered(b []byte) seac.APDUPolicy {
	filters, err := seac.FiltersFrom(b)
	if err != nil {
		log.Fatalf("Invalid demo APDU filter: %v", err)
	}
	return seac.APDUFiltered(filters...)
}

func mustPermissions(b []byte) seac.Permissions {
	perms, err := seac.PermissionsFrom(b)
	if err != nil {
		log.Fatalf("Invalid demo permission mask: %v", err)
	}
	return perms
}
