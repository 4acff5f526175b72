// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package couchclient

import (
	"github.com/diffeo/go-couchdb/couchdata"
	"github.com/sirupsen/logrus"
)

// Security returns the database's security document.
func (db *Database) Security() Result {
	return db.do(Call{Endpoint: "_security", Header: jsonHeader()})
}

// SetSecurity replaces the database's security document.
func (db *Database) SetSecurity(security interface{}) Result {
	result := db.do(Call{
		Endpoint: "_security",
		Method:   "PUT",
		Header:   jsonHeader(),
		JSON:     security,
	})
	db.log().WithField("ok", result.GetBool("ok")).Info("Pushed updated security document")
	return result
}

// AddAdminUser adds a user name to the database admins.
func (db *Database) AddAdminUser(name string) Result {
	return db.editSecurity(couchdata.SecurityAdmins, couchdata.SecurityNames, name, true)
}

// RemoveAdminUser removes a user name from the database admins.
func (db *Database) RemoveAdminUser(name string) Result {
	return db.editSecurity(couchdata.SecurityAdmins, couchdata.SecurityNames, name, false)
}

// AddAdminRole adds a role to the database admins.
func (db *Database) AddAdminRole(role string) Result {
	return db.editSecurity(couchdata.SecurityAdmins, couchdata.SecurityRoles, role, true)
}

// RemoveAdminRole removes a role from the database admins.
func (db *Database) RemoveAdminRole(role string) Result {
	return db.editSecurity(couchdata.SecurityAdmins, couchdata.SecurityRoles, role, false)
}

// AddMemberUser adds a user name to the database members.
func (db *Database) AddMemberUser(name string) Result {
	return db.editSecurity(couchdata.SecurityMembers, couchdata.SecurityNames, name, true)
}

// RemoveMemberUser removes a user name from the database members.
func (db *Database) RemoveMemberUser(name string) Result {
	return db.editSecurity(couchdata.SecurityMembers, couchdata.SecurityNames, name, false)
}

// AddMemberRole adds a role to the database members.
func (db *Database) AddMemberRole(role string) Result {
	return db.editSecurity(couchdata.SecurityMembers, couchdata.SecurityRoles, role, true)
}

// RemoveMemberRole removes a role from the database members.
func (db *Database) RemoveMemberRole(role string) Result {
	return db.editSecurity(couchdata.SecurityMembers, couchdata.SecurityRoles, role, false)
}

// editSecurity adds or removes entry in security[group][field] and
// writes the document back only if that changed anything.  Other
// parts of the document are preserved.  If nothing changed, the
// result of reading the document is returned.
func (db *Database) editSecurity(group, field, entry string, add bool) Result {
	current := db.Security()
	if !current.OK() || current.RemoteError() != nil {
		return current
	}
	doc := current.Object()
	if doc == nil {
		doc = map[string]interface{}{}
	}
	section, _ := doc[group].(map[string]interface{})
	if section == nil {
		section = map[string]interface{}{}
		doc[group] = section
	}
	list, _ := section[field].([]interface{})

	log := db.log().WithFields(logrus.Fields{
		"group": group,
		"field": field,
		"entry": entry,
	})
	index := -1
	for i, item := range list {
		if s, isString := item.(string); isString && s == entry {
			index = i
			break
		}
	}
	switch {
	case add && index >= 0:
		log.Debug("Already present in security document")
		return current
	case add:
		list = append(list, entry)
	case index < 0:
		log.Error("Not present in security document")
		return Failure(&Error{
			Kind:    KindPrecondition,
			Code:    "400",
			Message: entry + " is not part of the " + group + " group",
			Body: map[string]interface{}{
				"group": group,
				"field": field,
				"entry": entry,
			},
		})
	default:
		list = append(list[:index:index], list[index+1:]...)
	}
	section[field] = list
	return db.SetSecurity(doc)
}
