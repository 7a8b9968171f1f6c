package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// Topics provides builders for the vending fleet MQTT topic scheme.
// Using these helpers ensures consistent topic naming across the codebase.
//
// The scheme is part of the broker contract with the machine controllers:
//
//	machines/{machineId}/slots/{slotId}   slot mutations
//	machines/{machineId}/reboot           reboot commands
//	machines/{machineId}/payments         payment status events (inbound)
//	enterprises/{enterpriseId}/sales      sale events (inbound)
//	diagnostics/connection-test/{who}     operator connectivity tests
type Topics struct{}

// SlotOperation returns the topic for slot create/update/delete commands.
//
// Example: machines/12/slots/34
func (Topics) SlotOperation(machineID, slotID int64) string {
	return fmt.Sprintf("machines/%d/slots/%d", machineID, slotID)
}

// MachineReboot returns the topic for machine reboot commands.
//
// Example: machines/12/reboot
func (Topics) MachineReboot(machineID int64) string {
	return fmt.Sprintf("machines/%d/reboot", machineID)
}

// ConnectionTest returns the diagnostic ping topic for a given identity.
// The identity is the user id when known, otherwise the client id, otherwise
// the literal "admin".
//
// Example: diagnostics/connection-test/42
func (Topics) ConnectionTest(who string) string {
	if who == "" {
		who = "admin"
	}
	return fmt.Sprintf("diagnostics/connection-test/%s", who)
}

// AllMachinePayments returns the wildcard pattern covering every machine's
// payment status channel.
//
// Pattern: machines/+/payments
func (Topics) AllMachinePayments() string {
	return "machines/+/payments"
}

// AllEnterpriseSales returns the wildcard pattern covering every enterprise's
// sale event channel.
//
// Pattern: enterprises/+/sales
func (Topics) AllEnterpriseSales() string {
	return "enterprises/+/sales"
}

// ExpandProductTopic fills a product operation topic template.
//
// The template comes from broker configuration (the product routing topic is
// part of the broker contract, not derivable from the slot scheme) and uses
// {enterpriseId} and {productId} placeholders.
func ExpandProductTopic(template string, enterpriseID, productID int64) string {
	out := strings.ReplaceAll(template, "{enterpriseId}", strconv.FormatInt(enterpriseID, 10))
	return strings.ReplaceAll(out, "{productId}", strconv.FormatInt(productID, 10))
}
