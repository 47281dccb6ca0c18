// Package logon implements the authentication front door of the cluster.
//
// A client connects, sends a challenge naming its account, proves knowledge
// of the password through SRP6 and then asks for the list of realms. Each
// connection is served by a net.Session; the per-connection SRP6 state lives
// exactly as long as the session.
package logon
