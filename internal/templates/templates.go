package templates

// AlertTemplateName is the fixed template used for alert fan-out.
const AlertTemplateName = "alert_notification"

type emailTemplate struct {
	text string
	html string
}

// Fixed named template set. Email templates carry a plain-text body plus an
// HTML alternative; SMS templates are plain text only.
var emailTemplates = map[string]emailTemplate{
	"welcome": {
		text: `Welcome to LifeLine-ICT!

Hello {{.user_name}},

Thank you for registering with LifeLine-ICT. Your account has been created successfully.

Your account details:
- Email: {{.user_email}}
- Registration Date: {{.registration_date}}

Please keep your login credentials secure.

Best regards,
The LifeLine-ICT Team`,
		html: `<html>
<body>
    <h2>Welcome to LifeLine-ICT!</h2>
    <p>Hello {{.user_name}},</p>
    <p>Thank you for registering with LifeLine-ICT. Your account has been created successfully.</p>
    <h3>Your account details:</h3>
    <ul>
        <li>Email: {{.user_email}}</li>
        <li>Registration Date: {{.registration_date}}</li>
    </ul>
    <p>Please keep your login credentials secure.</p>
    <p>Best regards,<br>The LifeLine-ICT Team</p>
</body>
</html>`,
	},
	"password_reset": {
		text: `Password Reset Request

Hello {{.user_name}},

You have requested to reset your password for your LifeLine-ICT account.

To reset your password, please use the link below:
{{.reset_link}}

This link will expire in {{.expiry_hours}} hours.

If you did not request this password reset, please ignore this email.

Best regards,
The LifeLine-ICT Team`,
		html: `<html>
<body>
    <h2>Password Reset Request</h2>
    <p>Hello {{.user_name}},</p>
    <p>You have requested to reset your password for your LifeLine-ICT account.</p>
    <p><a href="{{.reset_link}}">Reset Password</a></p>
    <p>This link will expire in {{.expiry_hours}} hours.</p>
    <p>If you did not request this password reset, please ignore this email.</p>
    <p>Best regards,<br>The LifeLine-ICT Team</p>
</body>
</html>`,
	},
	AlertTemplateName: {
		text: `Alert Notification

An alert has been triggered in the LifeLine-ICT system.

Alert Details:
- Alert Type: {{.type}}
- Severity: {{.severity}}
- Location: {{.location}}
- Time: {{.alert_time}}
- Description: {{.description}}

Please check the system for more details and take appropriate action.

Best regards,
The LifeLine-ICT Team`,
		html: `<html>
<body>
    <h2>Alert Notification</h2>
    <p>An alert has been triggered in the LifeLine-ICT system.</p>
    <h3>Alert Details:</h3>
    <ul>
        <li><strong>Alert Type:</strong> {{.type}}</li>
        <li><strong>Severity:</strong> {{.severity}}</li>
        <li><strong>Location:</strong> {{.location}}</li>
        <li><strong>Time:</strong> {{.alert_time}}</li>
        <li><strong>Description:</strong> {{.description}}</li>
    </ul>
    <p>Please check the system for more details and take appropriate action.</p>
    <p>Best regards,<br>The LifeLine-ICT Team</p>
</body>
</html>`,
	},
	"maintenance_reminder": {
		text: `Maintenance Reminder

This is a reminder about an upcoming maintenance activity.

Maintenance Details:
- Resource: {{.resource_name}}
- Location: {{.location}}
- Scheduled Date: {{.scheduled_date}}
- Description: {{.description}}

Please plan accordingly for this maintenance window.

Best regards,
The LifeLine-ICT Team`,
		html: `<html>
<body>
    <h2>Maintenance Reminder</h2>
    <p>This is a reminder about an upcoming maintenance activity.</p>
    <h3>Maintenance Details:</h3>
    <ul>
        <li><strong>Resource:</strong> {{.resource_name}}</li>
        <li><strong>Location:</strong> {{.location}}</li>
        <li><strong>Scheduled Date:</strong> {{.scheduled_date}}</li>
        <li><strong>Description:</strong> {{.description}}</li>
    </ul>
    <p>Please plan accordingly for this maintenance window.</p>
    <p>Best regards,<br>The LifeLine-ICT Team</p>
</body>
</html>`,
	},
}

var smsTemplates = map[string]string{
	"welcome": `Welcome to LifeLine-ICT! Your account has been created successfully.
Email: {{.user_email}}
Keep your credentials secure.`,
	"password_reset": `Password reset requested for LifeLine-ICT account.
Reset link: {{.reset_link}}
Expires in {{.expiry_hours}} hours.
If you didn't request this, please ignore.`,
	AlertTemplateName: `ALERT: {{.type}} at {{.location}}
Severity: {{.severity}}
Time: {{.alert_time}}
Description: {{.description}}
Please check system for details.`,
	"maintenance_reminder": `Maintenance Reminder: {{.resource_name}}
Location: {{.location}}
Date: {{.scheduled_date}}
Description: {{.description}}
Plan accordingly.`,
	"verification_code": `Your LifeLine-ICT verification code is: {{.verification_code}}
This code expires in {{.expiry_minutes}} minutes.
Do not share this code with anyone.`,
	"ticket_update": `Ticket Update: {{.ticket_id}}
Status: {{.status}}
{{.message}}
Check system for details.`,
}
